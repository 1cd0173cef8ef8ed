package database

import (
	"embed"
	"fmt"
	"log"
	"sort"
	"strings"

	"gorm.io/gorm"

	"taxready-service/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationRecord tracks which migrations have been applied
type MigrationRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Version   string `gorm:"uniqueIndex;size:255"`
	AppliedAt int64  `gorm:"autoCreateTime"`
}

// RunMigrations runs all pending database migrations
func RunMigrations(db *gorm.DB) error {
	log.Println("Starting database migrations...")

	// Step 1: Create migration tracking table
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migration tracking table: %w", err)
	}

	// Step 2: Run GORM AutoMigrate for model schema (one by one for better error handling)
	log.Println("  → Running schema migrations...")
	modelsToMigrate := []struct {
		name  string
		model interface{}
	}{
		{"IncomeRecord", &models.IncomeRecord{}},
		{"ExpenseRecord", &models.ExpenseRecord{}},
	}
	for _, m := range modelsToMigrate {
		log.Printf("    → Migrating %s...", m.name)
		if err := db.AutoMigrate(m.model); err != nil {
			return fmt.Errorf("failed to auto-migrate %s: %w", m.name, err)
		}
		log.Printf("    ✓ %s migrated", m.name)
	}
	log.Println("  ✓ Schema migrations complete")

	// Step 3: Run SQL migrations (indexes and anything AutoMigrate cannot express)
	log.Println("  → Running SQL migrations...")
	if err := runSQLMigrations(db); err != nil {
		return fmt.Errorf("failed to run SQL migrations: %w", err)
	}
	log.Println("  ✓ SQL migrations complete")

	log.Println("✓ All database migrations complete")
	return nil
}

// runSQLMigrations executes embedded SQL migration files in order
func runSQLMigrations(db *gorm.DB) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	// Sort files by name (ensures order: 001_, 002_, etc.)
	// Skip 001_create_ledger_tables.sql since GORM AutoMigrate handles schema
	var fileNames []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			if strings.HasPrefix(entry.Name(), "001_") {
				continue
			}
			fileNames = append(fileNames, entry.Name())
		}
	}
	sort.Strings(fileNames)

	for _, fileName := range fileNames {
		// Check if migration already applied
		var record MigrationRecord
		result := db.Where("version = ?", fileName).First(&record)
		if result.Error == nil {
			log.Printf("    → Skipping %s (already applied)", fileName)
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + fileName)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", fileName, err)
		}

		log.Printf("    → Applying %s...", fileName)

		if err := executeSQLStatements(db, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", fileName, err)
		}

		// Record migration as applied
		if err := db.Create(&MigrationRecord{Version: fileName}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", fileName, err)
		}

		log.Printf("    ✓ Applied %s", fileName)
	}

	return nil
}

// executeSQLStatements executes a SQL script with multiple statements
func executeSQLStatements(db *gorm.DB, sql string) error {
	statements := splitSQLStatements(sql)

	executed := 0
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		// Strip leading comment lines so a statement preceded by comments still runs
		lines := strings.Split(stmt, "\n")
		var sqlLines []string
		for _, line := range lines {
			trimmedLine := strings.TrimSpace(line)
			if !strings.HasPrefix(trimmedLine, "--") && trimmedLine != "" {
				sqlLines = append(sqlLines, line)
			}
		}
		stmt = strings.TrimSpace(strings.Join(sqlLines, "\n"))
		if stmt == "" {
			continue
		}
		executed++

		result := db.Exec(stmt)
		if result.Error != nil {
			// Tolerate reruns against an already-migrated schema
			if strings.Contains(result.Error.Error(), "duplicate key") ||
				strings.Contains(result.Error.Error(), "already exists") {
				log.Printf("      [%d/%d] SKIP (already exists)", executed, len(statements))
				continue
			}
			log.Printf("      [%d/%d] FAIL: %v", executed, len(statements), result.Error)
			return result.Error
		}
		log.Printf("      [%d/%d] OK (rows: %d)", executed, len(statements), result.RowsAffected)
	}

	return nil
}

// splitSQLStatements splits SQL content into individual statements
func splitSQLStatements(sql string) []string {
	var statements []string
	var currentStmt strings.Builder
	inString := false
	stringChar := rune(0)

	for i, char := range sql {
		// Track string literals to avoid splitting on semicolons within strings
		if (char == '\'' || char == '"') && (i == 0 || sql[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = char
			} else if char == stringChar {
				inString = false
			}
		}

		if char == ';' && !inString {
			stmt := strings.TrimSpace(currentStmt.String())
			if stmt != "" {
				statements = append(statements, stmt)
			}
			currentStmt.Reset()
		} else {
			currentStmt.WriteRune(char)
		}
	}

	// Add final statement if any
	stmt := strings.TrimSpace(currentStmt.String())
	if stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}
