package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"taxready-service/internal/models"
)

// Cache TTL constants for ledger data
const (
	CalculationCacheTTL = 15 * time.Minute // Calculation results keyed by input hash
	SummaryCacheTTL     = 5 * time.Minute  // Summaries are invalidated on every booking anyway
)

// cacheKeyPrefix namespaces every Redis key written by this service.
const cacheKeyPrefix = "taxready:"

// DefaultSessionID scopes ledger rows booked without an explicit session header.
const DefaultSessionID = "default"

// LedgerRepositoryInterface defines ledger persistence and calculation caching
type LedgerRepositoryInterface interface {
	CreateIncomeRecord(ctx context.Context, record *models.IncomeRecord) error
	ListIncomeRecords(ctx context.Context, sessionID string) ([]models.IncomeRecord, error)
	DeleteIncomeRecord(ctx context.Context, sessionID string, recordID uuid.UUID) error
	CreateExpenseRecord(ctx context.Context, record *models.ExpenseRecord) error
	ListExpenseRecords(ctx context.Context, sessionID string) ([]models.ExpenseRecord, error)
	DeleteExpenseRecord(ctx context.Context, sessionID string, recordID uuid.UUID) error
	GetLedgerSummary(ctx context.Context, sessionID string) (*models.LedgerSummary, error)
	GetExpenseTotalsByCategory(ctx context.Context, sessionID string) (map[string]decimal.Decimal, error)
	GetCachedCalculation(ctx context.Context, cacheKey string) (string, error)
	CacheCalculation(ctx context.Context, cacheKey string, resultJSON string, ttl time.Duration) error
}

// LedgerRepository handles ledger data operations
type LedgerRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB, redisClient *redis.Client) *LedgerRepository {
	return &LedgerRepository{
		db:    db,
		redis: redisClient,
	}
}

// generateSummaryCacheKey creates a cache key for ledger summary lookups
func generateSummaryCacheKey(sessionID string) string {
	return cacheKeyPrefix + "summary:" + sessionID
}

// invalidateSummaryCache drops the cached summary after a ledger write
func (r *LedgerRepository) invalidateSummaryCache(ctx context.Context, sessionID string) {
	if r.redis == nil {
		return
	}
	r.redis.Del(ctx, generateSummaryCacheKey(sessionID))
}

// CreateIncomeRecord books an income row into the ledger
func (r *LedgerRepository) CreateIncomeRecord(ctx context.Context, record *models.IncomeRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if err == nil {
		r.invalidateSummaryCache(ctx, record.SessionID)
	}
	return err
}

// ListIncomeRecords lists a session's income rows, newest first
func (r *LedgerRepository) ListIncomeRecords(ctx context.Context, sessionID string) ([]models.IncomeRecord, error) {
	var records []models.IncomeRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("record_date DESC, created_at DESC").
		Find(&records).Error
	return records, err
}

// DeleteIncomeRecord deletes one income row scoped to the session
func (r *LedgerRepository) DeleteIncomeRecord(ctx context.Context, sessionID string, recordID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("session_id = ? AND id = ?", sessionID, recordID).
		Delete(&models.IncomeRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.invalidateSummaryCache(ctx, sessionID)
	return nil
}

// CreateExpenseRecord books an expense row into the ledger
func (r *LedgerRepository) CreateExpenseRecord(ctx context.Context, record *models.ExpenseRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if err == nil {
		r.invalidateSummaryCache(ctx, record.SessionID)
	}
	return err
}

// ListExpenseRecords lists a session's expense rows, newest first
func (r *LedgerRepository) ListExpenseRecords(ctx context.Context, sessionID string) ([]models.ExpenseRecord, error) {
	var records []models.ExpenseRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("record_date DESC, created_at DESC").
		Find(&records).Error
	return records, err
}

// DeleteExpenseRecord deletes one expense row scoped to the session
func (r *LedgerRepository) DeleteExpenseRecord(ctx context.Context, sessionID string, recordID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("session_id = ? AND id = ?", sessionID, recordID).
		Delete(&models.ExpenseRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.invalidateSummaryCache(ctx, sessionID)
	return nil
}

// GetLedgerSummary aggregates a session's ledger into totals
func (r *LedgerRepository) GetLedgerSummary(ctx context.Context, sessionID string) (*models.LedgerSummary, error) {
	// Try to get from cache first
	if r.redis != nil {
		val, err := r.redis.Get(ctx, generateSummaryCacheKey(sessionID)).Result()
		if err == nil {
			var summary models.LedgerSummary
			if err := json.Unmarshal([]byte(val), &summary); err == nil {
				return &summary, nil
			}
		}
	}

	var income struct {
		Total   decimal.Decimal
		Credits decimal.Decimal
		Count   int64
	}
	err := r.db.WithContext(ctx).Model(&models.IncomeRecord{}).
		Select("COALESCE(SUM(amount), 0) AS total, COALESCE(SUM(wht_amount), 0) AS credits, COUNT(*) AS count").
		Where("session_id = ?", sessionID).
		Scan(&income).Error
	if err != nil {
		return nil, err
	}

	var expenses struct {
		Total decimal.Decimal
		Count int64
	}
	err = r.db.WithContext(ctx).Model(&models.ExpenseRecord{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("session_id = ?", sessionID).
		Scan(&expenses).Error
	if err != nil {
		return nil, err
	}

	summary := &models.LedgerSummary{
		SessionID:     sessionID,
		TotalIncome:   income.Total,
		TotalExpenses: expenses.Total,
		NetProfit:     income.Total.Sub(expenses.Total),
		WHTCredits:    income.Credits,
		IncomeCount:   income.Count,
		ExpenseCount:  expenses.Count,
	}

	// Cache the result
	if r.redis != nil {
		data, marshalErr := json.Marshal(summary)
		if marshalErr == nil {
			r.redis.Set(ctx, generateSummaryCacheKey(sessionID), data, SummaryCacheTTL)
		}
	}

	return summary, nil
}

// GetExpenseTotalsByCategory sums a session's expenses per category
func (r *LedgerRepository) GetExpenseTotalsByCategory(ctx context.Context, sessionID string) (map[string]decimal.Decimal, error) {
	var rows []struct {
		Category string
		Total    decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&models.ExpenseRecord{}).
		Select("category, COALESCE(SUM(amount), 0) AS total").
		Where("session_id = ?", sessionID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.Category] = row.Total
	}
	return totals, nil
}

// GetCachedCalculation retrieves a cached calculation result as raw JSON
func (r *LedgerRepository) GetCachedCalculation(ctx context.Context, cacheKey string) (string, error) {
	if r.redis == nil {
		return "", redis.Nil
	}
	return r.redis.Get(ctx, cacheKeyPrefix+"calc:"+cacheKey).Result()
}

// CacheCalculation stores a calculation result as raw JSON
func (r *LedgerRepository) CacheCalculation(ctx context.Context, cacheKey string, resultJSON string, ttl time.Duration) error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Set(ctx, cacheKeyPrefix+"calc:"+cacheKey, resultJSON, ttl).Err()
}
