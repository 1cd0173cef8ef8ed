package services

import (
	"context"

	"github.com/shopspring/decimal"

	"taxready-service/internal/models"
)

// Assumed salary split when modeling a gross amount as employment income.
var (
	comparisonBasicShare     = decimal.NewFromFloat(0.50)
	comparisonHousingShare   = decimal.NewFromFloat(0.25)
	comparisonTransportShare = decimal.NewFromFloat(0.15)
	comparisonOtherShare     = decimal.NewFromFloat(0.10)
)

// CompareEmployeeVsContractor models receiving the same gross amount as a
// salaried employee and as an independent contractor. The employee side uses
// the assumed salary split with all statutory deductions on; the contractor
// side claims the given expense ratio, a maxed-out voluntary pension, and
// withholding credits at the default rate. Positive savings recommend
// contracting; a tie recommends employment.
func (c *TaxCalculator) CompareEmployeeVsContractor(ctx context.Context, req models.ComparisonRequest) (*models.ComparisonResponse, error) {
	if err := requireNonNegative("grossAmount", req.GrossAmount); err != nil {
		return nil, err
	}
	if req.ExpenseRatio.IsNegative() || req.ExpenseRatio.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidExpenseRatio
	}

	gross := req.GrossAmount.Round(2)
	monthly := gross.Div(twelve)

	employee, err := c.CalculatePaye(ctx, models.PayeCalculationRequest{
		BasicMonthly:           monthly.Mul(comparisonBasicShare).Round(2),
		HousingMonthly:         monthly.Mul(comparisonHousingShare).Round(2),
		TransportMonthly:       monthly.Mul(comparisonTransportShare).Round(2),
		OtherAllowancesMonthly: monthly.Mul(comparisonOtherShare).Round(2),
	})
	if err != nil {
		return nil, err
	}

	contractor, err := c.CalculateContractorTax(ctx, models.ContractorCalculationRequest{
		GrossRevenue: gross,
		BusinessExpenses: map[string]decimal.Decimal{
			"Estimated Business Expenses": gross.Mul(req.ExpenseRatio).Round(2),
		},
		VoluntaryPension: gross.Mul(c.rules.PensionRate).Round(2),
		WHTCredits:       gross.Mul(c.rules.DefaultWithholdingRate).Round(2),
	})
	if err != nil {
		return nil, err
	}

	savings := employee.AnnualTax.Sub(contractor.NetTaxPayable)
	recommendation := models.RecommendationEmployee
	if savings.IsPositive() {
		recommendation = models.RecommendationContractor
	}

	return &models.ComparisonResponse{
		GrossAmount: gross,
		Employee: models.ComparisonEmployeeSummary{
			AnnualTax:     employee.AnnualTax,
			EffectiveRate: employee.EffectiveRate,
			NetIncome:     employee.NetAnnual,
		},
		Contractor: models.ComparisonContractorSummary{
			AnnualTax:       contractor.NetTaxPayable,
			EffectiveRate:   contractor.EffectiveRateRevenue,
			NetIncome:       gross.Sub(contractor.Expenses.Total).Sub(contractor.NetTaxPayable),
			ExpensesClaimed: contractor.Expenses.Total,
		},
		EmployeeOutcome:        employee,
		ContractorOutcome:      contractor,
		TaxSavingsAsContractor: savings,
		Recommendation:         recommendation,
	}, nil
}
