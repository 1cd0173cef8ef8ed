package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"taxready-service/internal/models"
)

// CalculateContractorTax computes a self-employed contractor's annual position.
// Gross profit is revenue minus claimed expenses and is reported as computed,
// negative for a loss-making year; taxable income is floored at zero after
// reliefs. Withholding already suffered is credited against the liability,
// with any excess reported as a refund position.
func (c *TaxCalculator) CalculateContractorTax(ctx context.Context, req models.ContractorCalculationRequest) (*models.ContractorCalculationResponse, error) {
	if err := requireNonNegative("grossRevenue", req.GrossRevenue); err != nil {
		return nil, err
	}
	for category, amount := range req.BusinessExpenses {
		if err := requireNonNegative("businessExpenses."+category, amount); err != nil {
			return nil, err
		}
	}
	for _, field := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"voluntaryPension", req.VoluntaryPension},
		{"lifeAssurancePremium", req.LifeAssurancePremium},
		{"whtCredits", req.WHTCredits},
	} {
		if err := requireNonNegative(field.name, field.value); err != nil {
			return nil, err
		}
	}

	// Check cache first
	cacheKey := generateContractorCacheKey(req)
	var cached models.ContractorCalculationResponse
	if c.lookupCached(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	revenue := req.GrossRevenue.Round(2)

	totalExpenses := decimal.Zero
	expenseBreakdown := make(map[string]decimal.Decimal, len(req.BusinessExpenses))
	for category, amount := range req.BusinessExpenses {
		rounded := amount.Round(2)
		expenseBreakdown[category] = rounded
		totalExpenses = totalExpenses.Add(rounded)
	}

	grossProfit := revenue.Sub(totalExpenses)

	reliefs := make([]models.DeductionLine, 0, 3)

	// Rent relief always applies, off gross revenue
	reliefs = append(reliefs, models.DeductionLine{
		Name:   models.DeductionRentRelief,
		Amount: decimal.Min(revenue.Mul(c.rules.RentReliefRate), c.rules.RentReliefCap).Round(2),
	})
	if req.VoluntaryPension.IsPositive() {
		// Voluntary pension is deductible up to 8% of revenue
		reliefs = append(reliefs, models.DeductionLine{
			Name:   models.ReliefVoluntaryPension,
			Amount: decimal.Min(req.VoluntaryPension, revenue.Mul(c.rules.PensionRate)).Round(2),
		})
	}
	if req.LifeAssurancePremium.IsPositive() {
		reliefs = append(reliefs, models.DeductionLine{
			Name:   models.DeductionLifeAssurance,
			Amount: decimal.Min(req.LifeAssurancePremium, c.rules.LifeAssuranceCap).Round(2),
		})
	}

	totalReliefs := decimal.Zero
	for _, line := range reliefs {
		totalReliefs = totalReliefs.Add(line.Amount)
	}

	taxableIncome := decimal.Max(grossProfit.Sub(totalReliefs), decimal.Zero)
	taxResult, err := c.ComputeTax(taxableIncome)
	if err != nil {
		return nil, err
	}

	taxBeforeCredits := taxResult.TotalTax
	whtCredits := req.WHTCredits.Round(2)

	response := &models.ContractorCalculationResponse{
		GrossRevenue:            revenue,
		Expenses:                models.ExpenseBreakdown{Breakdown: expenseBreakdown, Total: totalExpenses},
		GrossProfit:             grossProfit,
		Reliefs:                 reliefs,
		TotalReliefs:            totalReliefs,
		TaxableIncome:           taxableIncome,
		TaxBreakdown:            taxResult.Breakdown,
		TaxBeforeCredits:        taxBeforeCredits,
		WHTCredits:              whtCredits,
		NetTaxPayable:           decimal.Max(taxBeforeCredits.Sub(whtCredits), decimal.Zero),
		WHTRefund:               decimal.Max(whtCredits.Sub(taxBeforeCredits), decimal.Zero),
		EffectiveRateRevenue:    percentOf(taxBeforeCredits, revenue),
		EffectiveRateProfit:     percentOf(taxBeforeCredits, grossProfit),
		ProfitMargin:            percentOf(grossProfit, revenue),
		VATRegistrationRequired: revenue.GreaterThan(c.rules.VATRegistrationThreshold),
		QualifiesSmallCompany:   revenue.LessThanOrEqual(c.rules.SmallCompanyTurnoverLimit),
	}

	// Cache the result
	c.cacheResult(ctx, cacheKey, response)
	return response, nil
}

// EstimateWithholding computes the tax a payer must deduct on a single
// payment. Unrecognized categories fall back to the default rate.
func (c *TaxCalculator) EstimateWithholding(req models.WithholdingEstimateRequest) (*models.WithholdingEstimateResponse, error) {
	if err := requireNonNegative("amount", req.Amount); err != nil {
		return nil, err
	}

	gross := req.Amount.Round(2)
	rate := c.rules.WithholdingRate(req.Category)
	whtAmount := gross.Mul(rate).Round(2)

	return &models.WithholdingEstimateResponse{
		GrossAmount: gross,
		Category:    req.Category,
		Rate:        rate,
		WHTAmount:   whtAmount,
		NetPayment:  gross.Sub(whtAmount),
	}, nil
}

// AssessLedger runs a contractor assessment over a session's booked ledger:
// total income becomes revenue, per-category expense totals become the expense
// claim, and withholding recorded on income rows becomes the credit.
func (c *TaxCalculator) AssessLedger(ctx context.Context, sessionID string, req models.LedgerAssessmentRequest) (*models.ContractorCalculationResponse, error) {
	if c.repo == nil {
		return nil, errors.New("ledger repository not configured")
	}

	summary, err := c.repo.GetLedgerSummary(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	expenses, err := c.repo.GetExpenseTotalsByCategory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return c.CalculateContractorTax(ctx, models.ContractorCalculationRequest{
		GrossRevenue:         summary.TotalIncome,
		BusinessExpenses:     expenses,
		VoluntaryPension:     req.VoluntaryPension,
		LifeAssurancePremium: req.LifeAssurancePremium,
		WHTCredits:           summary.WHTCredits,
	})
}

// generateContractorCacheKey generates a cache key for a contractor calculation
func generateContractorCacheKey(req models.ContractorCalculationRequest) string {
	key := fmt.Sprintf("contractor:%s:%s:%s:%s",
		req.GrossRevenue, req.VoluntaryPension, req.LifeAssurancePremium, req.WHTCredits)

	// Expense categories in sorted order so the key is deterministic
	categories := make([]string, 0, len(req.BusinessExpenses))
	for category := range req.BusinessExpenses {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		key += fmt.Sprintf(":%s=%s", category, req.BusinessExpenses[category])
	}

	return hashCacheKey(key)
}
