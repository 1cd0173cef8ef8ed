package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxready-service/internal/models"
)

// ===========================================
// Employee vs Contractor Comparison Tests
// ===========================================

func TestCompareEmployeeVsContractor_MidIncome(t *testing.T) {
	calculator := newTestCalculator()

	response, err := calculator.CompareEmployeeVsContractor(context.Background(), models.ComparisonRequest{
		GrossAmount:  decimal.NewFromInt(6_000_000),
		ExpenseRatio: decimal.NewFromFloat(0.3),
	})
	require.NoError(t, err)

	assertMoney(t, "674808", response.Employee.AnnualTax)
	assertMoney(t, "11.2468", response.Employee.EffectiveRate)
	assertMoney(t, "5325192", response.Employee.NetIncome)

	assertMoney(t, "69600", response.Contractor.AnnualTax)
	assertMoney(t, "1800000", response.Contractor.ExpensesClaimed)
	assertMoney(t, "4130400", response.Contractor.NetIncome)

	assertMoney(t, "605208", response.TaxSavingsAsContractor)
	assert.Equal(t, models.RecommendationContractor, response.Recommendation)

	// Full outcomes ride along for drill-down rendering
	require.NotNil(t, response.EmployeeOutcome)
	require.NotNil(t, response.ContractorOutcome)
	assertMoney(t, "4915600", response.EmployeeOutcome.TaxableIncome)
	assertMoney(t, "1800000", response.ContractorOutcome.Expenses.Total)
	assertMoney(t, "300000", response.ContractorOutcome.WHTCredits)
}

func TestCompareEmployeeVsContractor_SavingsGrowWithExpenseRatio(t *testing.T) {
	calculator := newTestCalculator()

	var previous *decimal.Decimal
	for _, ratio := range []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6} {
		response, err := calculator.CompareEmployeeVsContractor(context.Background(), models.ComparisonRequest{
			GrossAmount:  decimal.NewFromInt(6_000_000),
			ExpenseRatio: decimal.NewFromFloat(ratio),
		})
		require.NoError(t, err)

		if previous != nil {
			assert.True(t, response.TaxSavingsAsContractor.GreaterThanOrEqual(*previous),
				"savings should not shrink as the expense ratio grows, failed at %.1f", ratio)
		}
		savings := response.TaxSavingsAsContractor
		previous = &savings

		// Savings max out at the employee's full tax bill
		assert.True(t, response.TaxSavingsAsContractor.LessThanOrEqual(response.Employee.AnnualTax))
	}

	// Past the point where credits cover the whole bill the curve plateaus
	assertMoney(t, "674808", *previous)
}

func TestCompareEmployeeVsContractor_FullExpenseRatio(t *testing.T) {
	calculator := newTestCalculator()

	response, err := calculator.CompareEmployeeVsContractor(context.Background(), models.ComparisonRequest{
		GrossAmount:  decimal.NewFromInt(6_000_000),
		ExpenseRatio: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	assertMoney(t, "0", response.Contractor.AnnualTax)
	assertMoney(t, "674808", response.TaxSavingsAsContractor)
}

func TestCompareEmployeeVsContractor_ZeroGrossTiesToEmployee(t *testing.T) {
	calculator := newTestCalculator()

	response, err := calculator.CompareEmployeeVsContractor(context.Background(), models.ComparisonRequest{})
	require.NoError(t, err)

	assertMoney(t, "0", response.TaxSavingsAsContractor)
	assert.Equal(t, models.RecommendationEmployee, response.Recommendation)
}

func TestCompareEmployeeVsContractor_SalarySplit(t *testing.T) {
	calculator := newTestCalculator()

	response, err := calculator.CompareEmployeeVsContractor(context.Background(), models.ComparisonRequest{
		GrossAmount:  decimal.NewFromInt(6_000_000),
		ExpenseRatio: decimal.NewFromFloat(0.3),
	})
	require.NoError(t, err)

	// The employee side assumes a 50/25/15/10 salary structure
	income := response.EmployeeOutcome.Income
	assertMoney(t, "3000000", income.BasicAnnual)
	assertMoney(t, "1500000", income.HousingAnnual)
	assertMoney(t, "900000", income.TransportAnnual)
	assertMoney(t, "600000", income.OtherAnnual)
	assertMoney(t, "6000000", income.GrossAnnual)
}

func TestCompareEmployeeVsContractor_InvalidRatioRejected(t *testing.T) {
	calculator := newTestCalculator()

	for _, ratio := range []string{"-0.1", "1.5"} {
		response, err := calculator.CompareEmployeeVsContractor(context.Background(), models.ComparisonRequest{
			GrossAmount:  decimal.NewFromInt(1_000_000),
			ExpenseRatio: decimal.RequireFromString(ratio),
		})
		assert.Nil(t, response)
		assert.ErrorIs(t, err, ErrInvalidExpenseRatio)
	}
}

func TestCompareEmployeeVsContractor_NegativeGrossRejected(t *testing.T) {
	response, err := newTestCalculator().CompareEmployeeVsContractor(context.Background(), models.ComparisonRequest{
		GrossAmount: decimal.NewFromInt(-100),
	})

	assert.Nil(t, response)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}
