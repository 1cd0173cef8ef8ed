package models

import (
	"github.com/shopspring/decimal"

	"taxready-service/internal/taxrules"
)

// PayeCalculationRequest represents a request to calculate employee PAYE.
// Salary components are monthly amounts; bonus, life assurance and mortgage
// interest are annual. The statutory toggles default to true when omitted.
type PayeCalculationRequest struct {
	BasicMonthly           decimal.Decimal `json:"basicMonthly"`
	HousingMonthly         decimal.Decimal `json:"housingMonthly"`
	TransportMonthly       decimal.Decimal `json:"transportMonthly"`
	OtherAllowancesMonthly decimal.Decimal `json:"otherAllowancesMonthly"`
	BonusAnnual            decimal.Decimal `json:"bonusAnnual"`
	LifeAssurancePremium   decimal.Decimal `json:"lifeAssurancePremium"`
	MortgageInterest       decimal.Decimal `json:"mortgageInterest"`
	IncludePension         *bool           `json:"includePension"`
	IncludeHousingFund     *bool           `json:"includeHousingFund"`
	IncludeHealthInsurance *bool           `json:"includeHealthInsurance"`
}

// TaxBreakdown is one row of the per-band tax table. Every calculation reports
// one row per band of the schedule; bands beyond the point where taxable
// income was exhausted carry zero amounts so downstream tables stay uniform.
type TaxBreakdown struct {
	Band          string          `json:"band"`
	Rate          decimal.Decimal `json:"rate"`
	TaxableAmount decimal.Decimal `json:"taxableAmount"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
}

// TaxResult is the output of the progressive band walk.
type TaxResult struct {
	Breakdown []TaxBreakdown  `json:"breakdown"`
	TotalTax  decimal.Decimal `json:"totalTax"`
}

// DeductionLine is one named deduction or relief. Slice order is the order of
// application and the order rows are rendered; formatting stays downstream.
type DeductionLine struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Deduction and relief names as they appear on breakdown lines. These are the
// statutory display names; the rates behind them live in the rules schedule.
const (
	DeductionPension          = "Pension (8%)"
	DeductionHousingFund      = "NHF (2.5%, capped)"
	DeductionHealthInsurance  = "NHIS (5%)"
	DeductionRentRelief       = "Rent Relief (20%, max ₦500k)"
	DeductionLifeAssurance    = "Life Assurance"
	DeductionMortgageInterest = "Mortgage Interest"
	ReliefVoluntaryPension    = "Voluntary Pension"
)

// IncomeBreakdown itemizes an employee's annualized income components.
type IncomeBreakdown struct {
	BasicAnnual     decimal.Decimal `json:"basicAnnual"`
	HousingAnnual   decimal.Decimal `json:"housingAnnual"`
	TransportAnnual decimal.Decimal `json:"transportAnnual"`
	OtherAnnual     decimal.Decimal `json:"otherAnnual"`
	BonusAnnual     decimal.Decimal `json:"bonusAnnual"`
	GrossAnnual     decimal.Decimal `json:"grossAnnual"`
	GrossMonthly    decimal.Decimal `json:"grossMonthly"`
}

// PayeCalculationResponse is the complete employee calculation outcome.
type PayeCalculationResponse struct {
	Income          IncomeBreakdown `json:"income"`
	Deductions      []DeductionLine `json:"deductions"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	TaxableIncome   decimal.Decimal `json:"taxableIncome"`
	TaxBreakdown    []TaxBreakdown  `json:"taxBreakdown"`
	AnnualTax       decimal.Decimal `json:"annualTax"`
	MonthlyTax      decimal.Decimal `json:"monthlyTax"`
	EffectiveRate   decimal.Decimal `json:"effectiveRate"`
	NetAnnual       decimal.Decimal `json:"netAnnual"`
	NetMonthly      decimal.Decimal `json:"netMonthly"`
}

// ContractorCalculationRequest represents a request to calculate tax for an
// independent contractor. BusinessExpenses maps category label to amount.
type ContractorCalculationRequest struct {
	GrossRevenue         decimal.Decimal            `json:"grossRevenue"`
	BusinessExpenses     map[string]decimal.Decimal `json:"businessExpenses"`
	VoluntaryPension     decimal.Decimal            `json:"voluntaryPension"`
	LifeAssurancePremium decimal.Decimal            `json:"lifeAssurancePremium"`
	WHTCredits           decimal.Decimal            `json:"whtCredits"`
}

// ExpenseBreakdown itemizes claimed business expenses with their total.
type ExpenseBreakdown struct {
	Breakdown map[string]decimal.Decimal `json:"breakdown"`
	Total     decimal.Decimal            `json:"total"`
}

// ContractorCalculationResponse is the complete contractor calculation
// outcome. GrossProfit may be negative for a loss-making year; taxable income
// is floored at zero after reliefs.
type ContractorCalculationResponse struct {
	GrossRevenue            decimal.Decimal  `json:"grossRevenue"`
	Expenses                ExpenseBreakdown `json:"expenses"`
	GrossProfit             decimal.Decimal  `json:"grossProfit"`
	Reliefs                 []DeductionLine  `json:"reliefs"`
	TotalReliefs            decimal.Decimal  `json:"totalReliefs"`
	TaxableIncome           decimal.Decimal  `json:"taxableIncome"`
	TaxBreakdown            []TaxBreakdown   `json:"taxBreakdown"`
	TaxBeforeCredits        decimal.Decimal  `json:"taxBeforeCredits"`
	WHTCredits              decimal.Decimal  `json:"whtCredits"`
	NetTaxPayable           decimal.Decimal  `json:"netTaxPayable"`
	WHTRefund               decimal.Decimal  `json:"whtRefund"`
	EffectiveRateRevenue    decimal.Decimal  `json:"effectiveRateRevenue"`
	EffectiveRateProfit     decimal.Decimal  `json:"effectiveRateProfit"`
	ProfitMargin            decimal.Decimal  `json:"profitMargin"`
	VATRegistrationRequired bool             `json:"vatRegistrationRequired"`
	QualifiesSmallCompany   bool             `json:"qualifiesSmallCompany"`
}

// WithholdingEstimateRequest represents a request to estimate the withholding
// tax a payer must deduct on a payment.
type WithholdingEstimateRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
}

// WithholdingEstimateResponse is the withholding estimate for one payment.
type WithholdingEstimateResponse struct {
	GrossAmount decimal.Decimal `json:"grossAmount"`
	Category    string          `json:"category"`
	Rate        decimal.Decimal `json:"rate"`
	WHTAmount   decimal.Decimal `json:"whtAmount"`
	NetPayment  decimal.Decimal `json:"netPayment"`
}

// Recommendation values returned by the employee-vs-contractor comparison.
const (
	RecommendationContractor = "Contractor"
	RecommendationEmployee   = "Employee"
)

// ComparisonRequest represents a request to compare receiving the same gross
// amount as a salaried employee versus as a contractor. ExpenseRatio is the
// assumed business expense fraction of revenue, in [0,1].
type ComparisonRequest struct {
	GrossAmount  decimal.Decimal `json:"grossAmount"`
	ExpenseRatio decimal.Decimal `json:"expenseRatio"`
}

// ComparisonEmployeeSummary condenses the employee side of a comparison.
type ComparisonEmployeeSummary struct {
	AnnualTax     decimal.Decimal `json:"annualTax"`
	EffectiveRate decimal.Decimal `json:"effectiveRate"`
	NetIncome     decimal.Decimal `json:"netIncome"`
}

// ComparisonContractorSummary condenses the contractor side of a comparison.
// AnnualTax is the net payable after the assumed withholding credits.
type ComparisonContractorSummary struct {
	AnnualTax       decimal.Decimal `json:"annualTax"`
	EffectiveRate   decimal.Decimal `json:"effectiveRate"`
	NetIncome       decimal.Decimal `json:"netIncome"`
	ExpensesClaimed decimal.Decimal `json:"expensesClaimed"`
}

// ComparisonResponse carries both condensed sides, the full outcomes they were
// derived from, and the recommendation. A tie recommends Employee.
type ComparisonResponse struct {
	GrossAmount            decimal.Decimal                `json:"grossAmount"`
	Employee               ComparisonEmployeeSummary      `json:"employee"`
	Contractor             ComparisonContractorSummary    `json:"contractor"`
	EmployeeOutcome        *PayeCalculationResponse       `json:"employeeOutcome"`
	ContractorOutcome      *ContractorCalculationResponse `json:"contractorOutcome"`
	TaxSavingsAsContractor decimal.Decimal                `json:"taxSavingsAsContractor"`
	Recommendation         string                         `json:"recommendation"`
}

// IncomeRecordRequest represents a request to add an income row to the ledger.
// Date is YYYY-MM-DD. Amount must be positive; WHTAmount is the withholding
// the client already deducted from this payment.
type IncomeRecordRequest struct {
	Date      string          `json:"date" binding:"required"`
	Category  string          `json:"category" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Client    string          `json:"client"`
	WHTAmount decimal.Decimal `json:"whtAmount"`
}

// ExpenseRecordRequest represents a request to add an expense row to the ledger.
type ExpenseRecordRequest struct {
	Date     string          `json:"date" binding:"required"`
	Category string          `json:"category" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Vendor   string          `json:"vendor"`
}

// LedgerAssessmentRequest carries the relief inputs a contractor supplies when
// running a tax assessment over their ledger aggregates.
type LedgerAssessmentRequest struct {
	VoluntaryPension     decimal.Decimal `json:"voluntaryPension"`
	LifeAssurancePremium decimal.Decimal `json:"lifeAssurancePremium"`
}

// BandInfo is one band of the published schedule. Upper and CumulativeTax are
// nil for the open-ended top band.
type BandInfo struct {
	Label         string           `json:"label"`
	Lower         decimal.Decimal  `json:"lower"`
	Upper         *decimal.Decimal `json:"upper"`
	Rate          decimal.Decimal  `json:"rate"`
	CumulativeTax *decimal.Decimal `json:"cumulativeTax"`
}

// BandsResponse publishes the band table with cumulative tax at each ceiling.
type BandsResponse struct {
	EffectiveDate string     `json:"effectiveDate"`
	Bands         []BandInfo `json:"bands"`
}

// ReferenceResponse publishes the full statutory schedule together with the
// countdown to its effective date (zero once in force).
type ReferenceResponse struct {
	EffectiveDate      string             `json:"effectiveDate"`
	DaysUntilEffective int                `json:"daysUntilEffective"`
	Rules              *taxrules.Schedule `json:"rules"`
}
