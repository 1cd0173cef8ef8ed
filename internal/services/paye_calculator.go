package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"taxready-service/internal/models"
)

// CalculatePaye computes an employee's annual PAYE position. Monthly salary
// components are annualized, statutory deductions and reliefs are applied in
// order, and the remainder is taxed through the progressive bands. Net pay is
// gross minus tax; the statutory deductions only reduce the taxable base.
func (c *TaxCalculator) CalculatePaye(ctx context.Context, req models.PayeCalculationRequest) (*models.PayeCalculationResponse, error) {
	for _, field := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"basicMonthly", req.BasicMonthly},
		{"housingMonthly", req.HousingMonthly},
		{"transportMonthly", req.TransportMonthly},
		{"otherAllowancesMonthly", req.OtherAllowancesMonthly},
		{"bonusAnnual", req.BonusAnnual},
		{"lifeAssurancePremium", req.LifeAssurancePremium},
		{"mortgageInterest", req.MortgageInterest},
	} {
		if err := requireNonNegative(field.name, field.value); err != nil {
			return nil, err
		}
	}

	// Check cache first
	cacheKey := generatePayeCacheKey(req)
	var cached models.PayeCalculationResponse
	if c.lookupCached(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	basicAnnual := req.BasicMonthly.Mul(twelve).Round(2)
	housingAnnual := req.HousingMonthly.Mul(twelve).Round(2)
	transportAnnual := req.TransportMonthly.Mul(twelve).Round(2)
	otherAnnual := req.OtherAllowancesMonthly.Mul(twelve).Round(2)
	bonusAnnual := req.BonusAnnual.Round(2)
	grossAnnual := basicAnnual.Add(housingAnnual).Add(transportAnnual).Add(otherAnnual).Add(bonusAnnual)

	deductions := make([]models.DeductionLine, 0, 6)
	if enabled(req.IncludePension) {
		// Pension contributions are 8% of basic + housing + transport
		pensionBase := basicAnnual.Add(housingAnnual).Add(transportAnnual)
		deductions = append(deductions, models.DeductionLine{
			Name:   models.DeductionPension,
			Amount: pensionBase.Mul(c.rules.PensionRate).Round(2),
		})
	}
	if enabled(req.IncludeHousingFund) {
		deductions = append(deductions, models.DeductionLine{
			Name:   models.DeductionHousingFund,
			Amount: decimal.Min(basicAnnual.Mul(c.rules.HousingFundRate), c.rules.HousingFundAnnualCap).Round(2),
		})
	}
	if enabled(req.IncludeHealthInsurance) {
		deductions = append(deductions, models.DeductionLine{
			Name:   models.DeductionHealthInsurance,
			Amount: basicAnnual.Mul(c.rules.HealthInsuranceRate).Round(2),
		})
	}

	// Rent relief always applies, off gross income
	deductions = append(deductions, models.DeductionLine{
		Name:   models.DeductionRentRelief,
		Amount: decimal.Min(grossAnnual.Mul(c.rules.RentReliefRate), c.rules.RentReliefCap).Round(2),
	})
	if req.LifeAssurancePremium.IsPositive() {
		deductions = append(deductions, models.DeductionLine{
			Name:   models.DeductionLifeAssurance,
			Amount: decimal.Min(req.LifeAssurancePremium, c.rules.LifeAssuranceCap).Round(2),
		})
	}
	if req.MortgageInterest.IsPositive() {
		deductions = append(deductions, models.DeductionLine{
			Name:   models.DeductionMortgageInterest,
			Amount: req.MortgageInterest.Round(2),
		})
	}

	totalDeductions := decimal.Zero
	for _, line := range deductions {
		totalDeductions = totalDeductions.Add(line.Amount)
	}

	taxableIncome := decimal.Max(grossAnnual.Sub(totalDeductions), decimal.Zero)
	taxResult, err := c.ComputeTax(taxableIncome)
	if err != nil {
		return nil, err
	}

	annualTax := taxResult.TotalTax
	netAnnual := grossAnnual.Sub(annualTax)

	response := &models.PayeCalculationResponse{
		Income: models.IncomeBreakdown{
			BasicAnnual:     basicAnnual,
			HousingAnnual:   housingAnnual,
			TransportAnnual: transportAnnual,
			OtherAnnual:     otherAnnual,
			BonusAnnual:     bonusAnnual,
			GrossAnnual:     grossAnnual,
			GrossMonthly:    grossAnnual.Div(twelve).Round(2),
		},
		Deductions:      deductions,
		TotalDeductions: totalDeductions,
		TaxableIncome:   taxableIncome,
		TaxBreakdown:    taxResult.Breakdown,
		AnnualTax:       annualTax,
		MonthlyTax:      annualTax.Div(twelve).Round(2),
		EffectiveRate:   percentOf(annualTax, grossAnnual),
		NetAnnual:       netAnnual,
		NetMonthly:      netAnnual.Div(twelve).Round(2),
	}

	// Cache the result
	c.cacheResult(ctx, cacheKey, response)
	return response, nil
}

// generatePayeCacheKey generates a cache key for a PAYE calculation
func generatePayeCacheKey(req models.PayeCalculationRequest) string {
	key := fmt.Sprintf("paye:%s:%s:%s:%s:%s:%s:%s:%t:%t:%t",
		req.BasicMonthly, req.HousingMonthly, req.TransportMonthly,
		req.OtherAllowancesMonthly, req.BonusAnnual,
		req.LifeAssurancePremium, req.MortgageInterest,
		enabled(req.IncludePension), enabled(req.IncludeHousingFund), enabled(req.IncludeHealthInsurance),
	)
	return hashCacheKey(key)
}
