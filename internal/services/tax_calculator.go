package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"taxready-service/internal/models"
	"taxready-service/internal/repository"
	"taxready-service/internal/taxrules"
)

// Sentinel errors for rejected calculation inputs. Handlers map these to 400s.
var (
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrInvalidExpenseRatio = errors.New("expense ratio must be between 0 and 1")
)

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// TaxCalculator handles tax calculation logic
type TaxCalculator struct {
	rules    *taxrules.Schedule
	repo     repository.LedgerRepositoryInterface
	cacheTTL time.Duration
}

// NewTaxCalculator creates a new tax calculator. A nil repository or a
// non-positive TTL disables result caching; calculations still run.
func NewTaxCalculator(rules *taxrules.Schedule, repo repository.LedgerRepositoryInterface, cacheTTL time.Duration) *TaxCalculator {
	return &TaxCalculator{
		rules:    rules,
		repo:     repo,
		cacheTTL: cacheTTL,
	}
}

// Rules returns the schedule the calculator was built with
func (c *TaxCalculator) Rules() *taxrules.Schedule {
	return c.rules
}

// ComputeTax walks taxable income through the progressive bands. Every band
// contributes a row even after income is exhausted, so breakdown tables always
// carry one row per band. Negative taxable income is rejected.
func (c *TaxCalculator) ComputeTax(taxableIncome decimal.Decimal) (*models.TaxResult, error) {
	if taxableIncome.IsNegative() {
		return nil, fmt.Errorf("taxable income: %w", ErrNegativeAmount)
	}

	remaining := taxableIncome
	result := &models.TaxResult{
		Breakdown: make([]models.TaxBreakdown, 0, len(c.rules.Bands)),
		TotalTax:  decimal.Zero,
	}

	for _, band := range c.rules.Bands {
		amount := remaining
		if !band.Unbounded() {
			amount = decimal.Min(remaining, band.Size())
		}

		tax := amount.Mul(band.Rate).Round(2)
		result.Breakdown = append(result.Breakdown, models.TaxBreakdown{
			Band:          band.Label,
			Rate:          band.Rate,
			TaxableAmount: amount,
			TaxAmount:     tax,
		})
		result.TotalTax = result.TotalTax.Add(tax)
		remaining = remaining.Sub(amount)
	}

	return result, nil
}

// requireNonNegative rejects a negative monetary input before any computation
func requireNonNegative(name string, value decimal.Decimal) error {
	if value.IsNegative() {
		return fmt.Errorf("%s: %w", name, ErrNegativeAmount)
	}
	return nil
}

// enabled resolves an optional toggle, defaulting to true when omitted
func enabled(flag *bool) bool {
	return flag == nil || *flag
}

// percentOf expresses part as a percentage of whole, zero when whole is not positive
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(4)
}

// hashCacheKey collapses a raw key string into a fixed-length cache key
func hashCacheKey(raw string) string {
	hash := md5.Sum([]byte(raw))
	return fmt.Sprintf("%x", hash)
}

// lookupCached loads a cached calculation into out, reporting whether it hit
func (c *TaxCalculator) lookupCached(ctx context.Context, cacheKey string, out interface{}) bool {
	if c.repo == nil || c.cacheTTL <= 0 {
		return false
	}
	cached, err := c.repo.GetCachedCalculation(ctx, cacheKey)
	if err != nil || cached == "" {
		return false
	}
	return json.Unmarshal([]byte(cached), out) == nil
}

// cacheResult stores a calculation result keyed by its input hash, best effort
func (c *TaxCalculator) cacheResult(ctx context.Context, cacheKey string, response interface{}) {
	if c.repo == nil || c.cacheTTL <= 0 {
		return
	}
	resultJSON, err := json.Marshal(response)
	if err != nil {
		return
	}
	c.repo.CacheCalculation(ctx, cacheKey, string(resultJSON), c.cacheTTL)
}
