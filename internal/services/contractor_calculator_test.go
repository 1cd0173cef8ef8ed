package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taxready-service/internal/models"
	"taxready-service/internal/taxrules"
)

// ===========================================
// Contractor Calculation Tests
// ===========================================

func TestCalculateContractorTax_StandardYear(t *testing.T) {
	calculator := newTestCalculator()

	response, err := calculator.CalculateContractorTax(context.Background(), models.ContractorCalculationRequest{
		GrossRevenue: decimal.NewFromInt(6_000_000),
		BusinessExpenses: map[string]decimal.Decimal{
			"Office Rent/Workspace": decimal.NewFromInt(400_000),
			"Equipment & Software":  decimal.NewFromInt(200_000),
		},
		WHTCredits: decimal.NewFromInt(300_000),
	})
	require.NoError(t, err)

	assertMoney(t, "600000", response.Expenses.Total)
	assertMoney(t, "5400000", response.GrossProfit)

	require.Len(t, response.Reliefs, 1)
	assert.Equal(t, models.DeductionRentRelief, response.Reliefs[0].Name)
	assertMoney(t, "500000", response.Reliefs[0].Amount)

	assertMoney(t, "4900000", response.TaxableIncome)
	assertMoney(t, "672000", response.TaxBeforeCredits)
	assertMoney(t, "372000", response.NetTaxPayable)
	assertMoney(t, "0", response.WHTRefund)

	assertMoney(t, "11.2", response.EffectiveRateRevenue)
	assertMoney(t, "12.4444", response.EffectiveRateProfit)
	assertMoney(t, "90", response.ProfitMargin)

	assert.False(t, response.VATRegistrationRequired)
	assert.True(t, response.QualifiesSmallCompany)
}

func TestCalculateContractorTax_VoluntaryReliefs(t *testing.T) {
	calculator := newTestCalculator()

	response, err := calculator.CalculateContractorTax(context.Background(), models.ContractorCalculationRequest{
		GrossRevenue:         decimal.NewFromInt(10_000_000),
		VoluntaryPension:     decimal.NewFromInt(900_000),
		LifeAssurancePremium: decimal.NewFromInt(80_000),
	})
	require.NoError(t, err)

	require.Len(t, response.Reliefs, 3)
	assert.Equal(t, models.DeductionRentRelief, response.Reliefs[0].Name)
	assertMoney(t, "500000", response.Reliefs[0].Amount)
	assert.Equal(t, models.ReliefVoluntaryPension, response.Reliefs[1].Name)
	assertMoney(t, "800000", response.Reliefs[1].Amount) // capped at 8% of revenue
	assert.Equal(t, models.DeductionLifeAssurance, response.Reliefs[2].Name)
	assertMoney(t, "80000", response.Reliefs[2].Amount)

	assertMoney(t, "1380000", response.TotalReliefs)
	assertMoney(t, "8620000", response.TaxableIncome)
	assertMoney(t, "1341600", response.TaxBeforeCredits)
}

func TestCalculateContractorTax_LossYear(t *testing.T) {
	calculator := newTestCalculator()

	response, err := calculator.CalculateContractorTax(context.Background(), models.ContractorCalculationRequest{
		GrossRevenue: decimal.NewFromInt(2_000_000),
		BusinessExpenses: map[string]decimal.Decimal{
			"Subcontractor Payments": decimal.NewFromInt(2_500_000),
		},
		WHTCredits: decimal.NewFromInt(100_000),
	})
	require.NoError(t, err)

	// The loss is reported as-is; taxable income floors at zero
	assertMoney(t, "-500000", response.GrossProfit)
	assertMoney(t, "0", response.TaxableIncome)
	assertMoney(t, "0", response.TaxBeforeCredits)
	assertMoney(t, "0", response.NetTaxPayable)
	assertMoney(t, "100000", response.WHTRefund)
	assertMoney(t, "-25", response.ProfitMargin)
	assertMoney(t, "0", response.EffectiveRateProfit)
}

func TestCalculateContractorTax_PayableRefundExclusive(t *testing.T) {
	calculator := newTestCalculator()

	for _, credits := range []int64{0, 200_000, 672_000, 1_000_000} {
		response, err := calculator.CalculateContractorTax(context.Background(), models.ContractorCalculationRequest{
			GrossRevenue: decimal.NewFromInt(6_000_000),
			BusinessExpenses: map[string]decimal.Decimal{
				"Office Supplies": decimal.NewFromInt(600_000),
			},
			WHTCredits: decimal.NewFromInt(credits),
		})
		require.NoError(t, err)

		assert.False(t, response.NetTaxPayable.IsPositive() && response.WHTRefund.IsPositive(),
			"payable and refund should never both be positive at credits %d", credits)

		settled := response.NetTaxPayable.Sub(response.WHTRefund)
		expected := response.TaxBeforeCredits.Sub(decimal.NewFromInt(credits))
		assert.True(t, settled.Equal(expected),
			"payable minus refund should equal tax minus credits at credits %d", credits)
	}
}

func TestCalculateContractorTax_RegistrationThresholds(t *testing.T) {
	calculator := newTestCalculator()

	testCases := []struct {
		name         string
		revenue      string
		vatRequired  bool
		smallCompany bool
	}{
		{"below_vat_threshold", "24999999", false, true},
		{"at_vat_threshold", "25000000", false, true},
		{"just_over_vat_threshold", "25000000.01", true, true},
		{"at_small_company_limit", "100000000", true, true},
		{"over_small_company_limit", "100000000.01", true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			response, err := calculator.CalculateContractorTax(context.Background(), models.ContractorCalculationRequest{
				GrossRevenue: decimal.RequireFromString(tc.revenue),
			})
			require.NoError(t, err)
			assert.Equal(t, tc.vatRequired, response.VATRegistrationRequired)
			assert.Equal(t, tc.smallCompany, response.QualifiesSmallCompany)
		})
	}
}

func TestCalculateContractorTax_NegativeInputRejected(t *testing.T) {
	calculator := newTestCalculator()

	testCases := []struct {
		name string
		req  models.ContractorCalculationRequest
	}{
		{"revenue", models.ContractorCalculationRequest{
			GrossRevenue: decimal.NewFromInt(-1),
		}},
		{"expense", models.ContractorCalculationRequest{
			GrossRevenue:     decimal.NewFromInt(1_000_000),
			BusinessExpenses: map[string]decimal.Decimal{"Insurance": decimal.NewFromInt(-200)},
		}},
		{"credits", models.ContractorCalculationRequest{
			GrossRevenue: decimal.NewFromInt(1_000_000),
			WHTCredits:   decimal.NewFromInt(-5),
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			response, err := calculator.CalculateContractorTax(context.Background(), tc.req)
			assert.Nil(t, response)
			assert.ErrorIs(t, err, ErrNegativeAmount)
		})
	}
}

// ===========================================
// Withholding Estimate Tests
// ===========================================

func TestEstimateWithholding(t *testing.T) {
	calculator := newTestCalculator()

	testCases := []struct {
		name     string
		category string
		amount   string
		rate     string
		wht      string
		net      string
	}{
		{"professional_services", "professional_services", "1000000", "0.1", "100000", "900000"},
		{"contracts", "contracts", "250000", "0.05", "12500", "237500"},
		{"unknown_category_default", "graphic_design", "1000000", "0.05", "50000", "950000"},
		{"fractional_amount", "", "80000.50", "0.05", "4000.03", "76000.47"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			response, err := calculator.EstimateWithholding(models.WithholdingEstimateRequest{
				Amount:   decimal.RequireFromString(tc.amount),
				Category: tc.category,
			})
			require.NoError(t, err)

			assertMoney(t, tc.rate, response.Rate)
			assertMoney(t, tc.wht, response.WHTAmount)
			assertMoney(t, tc.net, response.NetPayment)
		})
	}
}

func TestEstimateWithholding_NegativeAmountRejected(t *testing.T) {
	response, err := newTestCalculator().EstimateWithholding(models.WithholdingEstimateRequest{
		Amount:   decimal.NewFromInt(-100),
		Category: "contracts",
	})

	assert.Nil(t, response)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

// ===========================================
// Ledger Assessment Tests
// ===========================================

func TestAssessLedger_FromLedgerAggregates(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockLedgerRepository)
	calculator := NewTaxCalculator(taxrules.Default(), mockRepo, 0)

	summary := &models.LedgerSummary{
		SessionID:     "session-1",
		TotalIncome:   decimal.NewFromInt(6_000_000),
		TotalExpenses: decimal.NewFromInt(600_000),
		NetProfit:     decimal.NewFromInt(5_400_000),
		WHTCredits:    decimal.NewFromInt(300_000),
		IncomeCount:   12,
		ExpenseCount:  4,
	}
	expenseTotals := map[string]decimal.Decimal{
		"Office Rent/Workspace": decimal.NewFromInt(600_000),
	}

	mockRepo.On("GetLedgerSummary", ctx, "session-1").Return(summary, nil)
	mockRepo.On("GetExpenseTotalsByCategory", ctx, "session-1").Return(expenseTotals, nil)

	response, err := calculator.AssessLedger(ctx, "session-1", models.LedgerAssessmentRequest{
		VoluntaryPension: decimal.NewFromInt(200_000),
	})
	require.NoError(t, err)

	assertMoney(t, "6000000", response.GrossRevenue)
	assertMoney(t, "5400000", response.GrossProfit)
	assertMoney(t, "600000", response.Expenses.Total)

	// Rent relief plus the voluntary pension passed with the request
	require.Len(t, response.Reliefs, 2)
	assert.Equal(t, models.ReliefVoluntaryPension, response.Reliefs[1].Name)
	assertMoney(t, "4700000", response.TaxableIncome)
	assertMoney(t, "636000", response.TaxBeforeCredits)
	assertMoney(t, "336000", response.NetTaxPayable)

	mockRepo.AssertExpectations(t)
}

func TestAssessLedger_NoRepositoryConfigured(t *testing.T) {
	calculator := newTestCalculator()

	response, err := calculator.AssessLedger(context.Background(), "default", models.LedgerAssessmentRequest{})

	assert.Nil(t, response)
	assert.Error(t, err)
}

func TestAssessLedger_SummaryFailure(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockLedgerRepository)
	calculator := NewTaxCalculator(taxrules.Default(), mockRepo, 0)

	mockRepo.On("GetLedgerSummary", ctx, "default").Return(nil, errors.New("database unavailable"))

	response, err := calculator.AssessLedger(ctx, "default", models.LedgerAssessmentRequest{})

	assert.Nil(t, response)
	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "GetExpenseTotalsByCategory", mock.Anything, mock.Anything)
}
