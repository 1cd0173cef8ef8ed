package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"taxready-service/internal/config"
	"taxready-service/internal/database"
	"taxready-service/internal/events"
	"taxready-service/internal/handlers"
	"taxready-service/internal/middleware"
	"taxready-service/internal/repository"
	"taxready-service/internal/services"
	"taxready-service/internal/taxrules"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Load the tax rules schedule (built-in 2026 rules unless overridden)
	rules := taxrules.Default()
	if cfg.TaxRulesPath != "" {
		loaded, err := taxrules.Load(cfg.TaxRulesPath)
		if err != nil {
			logger.Fatalf("Failed to load tax rules from %s: %v", cfg.TaxRulesPath, err)
		}
		rules = loaded
		logger.Infof("✓ Tax rules loaded from %s", cfg.TaxRulesPath)
	}

	// Connect to database
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("✓ Connected to database")

	// Run automated database migrations
	if err := database.RunMigrations(db); err != nil {
		logger.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis client (graceful degradation if unavailable)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warnf("Failed to parse Redis URL: %v (caching disabled)", err)
		} else {
			redisClient = redis.NewClient(opt)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				logger.Warnf("Failed to connect to Redis: %v (caching disabled)", err)
				redisClient = nil
			} else {
				logger.Info("✓ Redis connection established")
			}
		}
	}

	// Initialize NATS events publisher (non-blocking)
	go func() {
		if err := events.InitPublisher(logger); err != nil {
			logger.Warnf("Failed to initialize events publisher: %v (events won't be published)", err)
		} else {
			logger.Info("✓ NATS events publisher initialized")
		}
	}()

	// Initialize repository with Redis caching
	ledgerRepo := repository.NewLedgerRepository(db, redisClient)

	// Subscribe to settled invoices so they auto-book into the ledger
	subscriber, err := events.NewSubscriber(ledgerRepo, logger)
	if err != nil {
		logger.Warnf("Failed to initialize invoice subscriber: %v (invoice auto-booking disabled)", err)
	} else {
		if err := subscriber.Start(context.Background()); err != nil {
			logger.Warnf("Failed to start invoice subscriber: %v (invoice auto-booking disabled)", err)
		}
	}

	// Initialize services
	cacheTTL := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	taxCalculator := services.NewTaxCalculator(rules, ledgerRepo, cacheTTL)

	// Initialize handlers
	taxHandler := handlers.NewTaxHandler(taxCalculator)
	ledgerHandler := handlers.NewLedgerHandler(ledgerRepo, taxCalculator)

	// Setup router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(taxHandler, ledgerHandler, db)

	// Start server
	logger.Infof("TaxReady service starting on port %s (env: %s)", cfg.Port, cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter configures the HTTP router
func setupRouter(taxHandler *handlers.TaxHandler, ledgerHandler *handlers.LedgerHandler, db *gorm.DB) *gin.Engine {
	router := gin.Default()

	// CORS middleware
	router.Use(middleware.CORS())

	// Health checks
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "taxready-service",
		})
	})

	// Liveness probe - simple check that the service is running
	router.GET("/livez", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Readiness probe - check that DB is accessible
	router.GET("/readyz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(503, gin.H{"status": "error", "message": "database not available"})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(503, gin.H{"status": "error", "message": "database ping failed"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Tax calculation endpoints
		tax := v1.Group("/tax")
		{
			calculations := tax.Group("/calculations")
			{
				calculations.POST("/paye", taxHandler.CalculatePaye)
				calculations.POST("/contractor", taxHandler.CalculateContractor)
				calculations.POST("/withholding", taxHandler.EstimateWithholding)
				calculations.POST("/compare", taxHandler.Compare)
			}

			// Statutory reference data
			tax.GET("/bands", taxHandler.GetBands)
			tax.GET("/reference", taxHandler.GetReference)
		}

		// Income and expense ledger
		ledger := v1.Group("/ledger")
		{
			ledger.POST("/income", ledgerHandler.AddIncome)
			ledger.GET("/income", ledgerHandler.ListIncome)
			ledger.DELETE("/income/:id", ledgerHandler.DeleteIncome)

			ledger.POST("/expenses", ledgerHandler.AddExpense)
			ledger.GET("/expenses", ledgerHandler.ListExpenses)
			ledger.DELETE("/expenses/:id", ledgerHandler.DeleteExpense)

			ledger.GET("/summary", ledgerHandler.GetSummary)
			ledger.POST("/assessment", ledgerHandler.RunAssessment)
			ledger.GET("/export", ledgerHandler.Export)
		}
	}

	return router
}
