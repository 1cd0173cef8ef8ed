package taxrules

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Band is one bracket of the progressive personal income tax schedule.
// Upper below zero means the band has no ceiling; only the last band may be open.
type Band struct {
	Label string          `json:"label"`
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
	Rate  decimal.Decimal `json:"rate"`
}

// Unbounded reports whether the band has no upper edge.
func (b Band) Unbounded() bool {
	return b.Upper.IsNegative()
}

// Size returns the width of a bounded band.
func (b Band) Size() decimal.Decimal {
	return b.Upper.Sub(b.Lower)
}

// CompanyTaxTier is a company income tax rate tier keyed by annual turnover.
// Threshold below zero means the tier has no turnover ceiling.
type CompanyTaxTier struct {
	Label     string          `json:"label"`
	Threshold decimal.Decimal `json:"threshold"`
	Rate      decimal.Decimal `json:"rate"`
}

// Penalty describes a statutory violation and its sanction. Amount is a flat
// naira fine; Rate is a multiple of the sum involved (used when Amount is zero).
type Penalty struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Rate        decimal.Decimal `json:"rate"`
}

// FilingDeadline pairs a recurring filing obligation with its statutory due date.
type FilingDeadline struct {
	Obligation string `json:"obligation"`
	Due        string `json:"due"`
}

// Schedule carries every statutory constant the calculation engines depend on:
// the progressive band table, deduction and relief rates with their caps, the
// registration thresholds, and the withholding rate table. A Schedule is built
// once at startup, validated, and never mutated afterwards.
type Schedule struct {
	EffectiveDate string `json:"effectiveDate"`

	Bands []Band `json:"bands"`

	// Statutory deduction rates and caps (employee path)
	PensionRate          decimal.Decimal `json:"pensionRate"`
	HousingFundRate      decimal.Decimal `json:"housingFundRate"`
	HousingFundAnnualCap decimal.Decimal `json:"housingFundAnnualCap"`
	HealthInsuranceRate  decimal.Decimal `json:"healthInsuranceRate"`

	// Relief rates and caps (both paths)
	RentReliefRate   decimal.Decimal `json:"rentReliefRate"`
	RentReliefCap    decimal.Decimal `json:"rentReliefCap"`
	LifeAssuranceCap decimal.Decimal `json:"lifeAssuranceCap"`

	// Registration thresholds. VAT registration (25M) and small company
	// qualification (100M) are distinct legal thresholds, never merged.
	VATRate                   decimal.Decimal `json:"vatRate"`
	VATRegistrationThreshold  decimal.Decimal `json:"vatRegistrationThreshold"`
	SmallCompanyTurnoverLimit decimal.Decimal `json:"smallCompanyTurnoverLimit"`
	SmallCompanyAssetsLimit   decimal.Decimal `json:"smallCompanyAssetsLimit"`

	// Withholding tax rates by payment category, with a permissive default
	// applied to unrecognized categories.
	WithholdingRates       map[string]decimal.Decimal `json:"withholdingRates"`
	DefaultWithholdingRate decimal.Decimal            `json:"defaultWithholdingRate"`

	CompanyTaxTiers []CompanyTaxTier `json:"companyTaxTiers"`
	Penalties       []Penalty        `json:"penalties"`
	FilingDeadlines []FilingDeadline `json:"filingDeadlines"`

	IncomeCategories  []string `json:"incomeCategories"`
	ExpenseCategories []string `json:"expenseCategories"`
}

// Default returns the Nigeria Tax Act 2025 schedule, effective 2026-01-01.
func Default() *Schedule {
	return &Schedule{
		EffectiveDate: "2026-01-01",

		Bands: []Band{
			{"First ₦800,000", decimal.Zero, decimal.NewFromInt(800_000), decimal.Zero},
			{"₦800,001 - ₦3,000,000", decimal.NewFromInt(800_000), decimal.NewFromInt(3_000_000), decimal.NewFromFloat(0.15)},
			{"₦3,000,001 - ₦12,000,000", decimal.NewFromInt(3_000_000), decimal.NewFromInt(12_000_000), decimal.NewFromFloat(0.18)},
			{"₦12,000,001 - ₦25,000,000", decimal.NewFromInt(12_000_000), decimal.NewFromInt(25_000_000), decimal.NewFromFloat(0.21)},
			{"₦25,000,001 - ₦50,000,000", decimal.NewFromInt(25_000_000), decimal.NewFromInt(50_000_000), decimal.NewFromFloat(0.23)},
			{"Above ₦50,000,000", decimal.NewFromInt(50_000_000), decimal.NewFromInt(-1), decimal.NewFromFloat(0.25)},
		},

		PensionRate:          decimal.NewFromFloat(0.08),
		HousingFundRate:      decimal.NewFromFloat(0.025),
		HousingFundAnnualCap: decimal.NewFromInt(2_400),
		HealthInsuranceRate:  decimal.NewFromFloat(0.05),

		RentReliefRate:   decimal.NewFromFloat(0.20),
		RentReliefCap:    decimal.NewFromInt(500_000),
		LifeAssuranceCap: decimal.NewFromInt(100_000),

		VATRate:                   decimal.NewFromFloat(0.075),
		VATRegistrationThreshold:  decimal.NewFromInt(25_000_000),
		SmallCompanyTurnoverLimit: decimal.NewFromInt(100_000_000),
		SmallCompanyAssetsLimit:   decimal.NewFromInt(250_000_000),

		WithholdingRates: map[string]decimal.Decimal{
			"professional_services": decimal.NewFromFloat(0.10),
			"consultancy":           decimal.NewFromFloat(0.10),
			"technical_services":    decimal.NewFromFloat(0.10),
			"contracts":             decimal.NewFromFloat(0.05),
			"supplies":              decimal.NewFromFloat(0.05),
			"rent":                  decimal.NewFromFloat(0.10),
			"dividends":             decimal.NewFromFloat(0.10),
			"interest":              decimal.NewFromFloat(0.10),
			"royalties":             decimal.NewFromFloat(0.10),
		},
		DefaultWithholdingRate: decimal.NewFromFloat(0.05),

		CompanyTaxTiers: []CompanyTaxTier{
			{"Small Company (0%)", decimal.NewFromInt(25_000_000), decimal.Zero},
			{"Medium Company (20%)", decimal.NewFromInt(100_000_000), decimal.NewFromFloat(0.20)},
			{"Large Company (30%)", decimal.NewFromInt(-1), decimal.NewFromFloat(0.30)},
		},

		Penalties: []Penalty{
			{Code: "late_filing_first", Description: "Late filing (first month)", Amount: decimal.NewFromInt(50_000)},
			{Code: "late_filing_subsequent", Description: "Late filing (each subsequent month)", Amount: decimal.NewFromInt(25_000)},
			{Code: "unregistered_contractor", Description: "Engaging an unregistered contractor", Amount: decimal.NewFromInt(5_000_000)},
			{Code: "failure_to_register_tin", Description: "Failure to register a TIN", Amount: decimal.NewFromInt(50_000)},
			{Code: "failure_to_deduct_wht", Description: "Failure to deduct withholding tax", Rate: decimal.NewFromFloat(2.0)},
		},

		FilingDeadlines: []FilingDeadline{
			{Obligation: "paye_monthly", Due: "10th of following month"},
			{Obligation: "vat_monthly", Due: "21st of following month"},
			{Obligation: "annual_return", Due: "Within 6 months of year end"},
			{Obligation: "wht_remittance", Due: "21st of following month"},
		},

		IncomeCategories: []string{
			"Consulting/Professional Fees",
			"Contract Payments",
			"Retainer Income",
			"Project-Based Income",
			"Royalties/Licensing",
			"Training/Speaking Fees",
			"Other Business Income",
		},
		ExpenseCategories: []string{
			"Office Rent/Workspace",
			"Utilities (Power, Water)",
			"Internet & Communications",
			"Equipment & Software",
			"Professional Subscriptions",
			"Accounting/Legal Fees",
			"Marketing & Advertising",
			"Travel & Transportation",
			"Subcontractor Payments",
			"Insurance",
			"Bank Charges",
			"Office Supplies",
			"Training & Development",
			"Other Business Expenses",
		},
	}
}

// rulesFile is the YAML override file format. Pointer fields distinguish
// absent from zero, so a partial file only changes the values it names.
// Reference-only data (company tax tiers, penalties, filing deadlines,
// category lists) always comes from the built-in schedule.
type rulesFile struct {
	EffectiveDate *string    `yaml:"effective_date"`
	Bands         []bandFile `yaml:"bands"`

	PensionRate          *float64 `yaml:"pension_rate"`
	HousingFundRate      *float64 `yaml:"housing_fund_rate"`
	HousingFundAnnualCap *float64 `yaml:"housing_fund_annual_cap"`
	HealthInsuranceRate  *float64 `yaml:"health_insurance_rate"`

	RentReliefRate   *float64 `yaml:"rent_relief_rate"`
	RentReliefCap    *float64 `yaml:"rent_relief_cap"`
	LifeAssuranceCap *float64 `yaml:"life_assurance_cap"`

	VATRate                   *float64 `yaml:"vat_rate"`
	VATRegistrationThreshold  *float64 `yaml:"vat_registration_threshold"`
	SmallCompanyTurnoverLimit *float64 `yaml:"small_company_turnover_limit"`
	SmallCompanyAssetsLimit   *float64 `yaml:"small_company_assets_limit"`

	WithholdingRates       map[string]float64 `yaml:"withholding_rates"`
	DefaultWithholdingRate *float64           `yaml:"default_withholding_rate"`
}

// bandFile is one band row of the override file. Upper -1 keeps the
// open-ended convention of the built-in table.
type bandFile struct {
	Label string  `yaml:"label"`
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
	Rate  float64 `yaml:"rate"`
}

// Load reads a YAML rules file and overlays it on the built-in defaults, so a
// partial file only has to name the values it changes. The band table is
// replaced wholesale when present. The merged schedule is validated before
// returning.
func Load(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tax rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tax rules file: %w", err)
	}

	schedule := Default()
	file.apply(schedule)

	if err := schedule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tax rules in %s: %w", path, err)
	}
	return schedule, nil
}

// apply overlays the file's named values onto the schedule
func (f *rulesFile) apply(s *Schedule) {
	if f.EffectiveDate != nil {
		s.EffectiveDate = *f.EffectiveDate
	}

	if len(f.Bands) > 0 {
		bands := make([]Band, 0, len(f.Bands))
		for _, band := range f.Bands {
			bands = append(bands, Band{
				Label: band.Label,
				Lower: decimal.NewFromFloat(band.Lower),
				Upper: decimal.NewFromFloat(band.Upper),
				Rate:  decimal.NewFromFloat(band.Rate),
			})
		}
		s.Bands = bands
	}

	overlay(&s.PensionRate, f.PensionRate)
	overlay(&s.HousingFundRate, f.HousingFundRate)
	overlay(&s.HousingFundAnnualCap, f.HousingFundAnnualCap)
	overlay(&s.HealthInsuranceRate, f.HealthInsuranceRate)
	overlay(&s.RentReliefRate, f.RentReliefRate)
	overlay(&s.RentReliefCap, f.RentReliefCap)
	overlay(&s.LifeAssuranceCap, f.LifeAssuranceCap)
	overlay(&s.VATRate, f.VATRate)
	overlay(&s.VATRegistrationThreshold, f.VATRegistrationThreshold)
	overlay(&s.SmallCompanyTurnoverLimit, f.SmallCompanyTurnoverLimit)
	overlay(&s.SmallCompanyAssetsLimit, f.SmallCompanyAssetsLimit)

	for category, rate := range f.WithholdingRates {
		s.WithholdingRates[category] = decimal.NewFromFloat(rate)
	}
	overlay(&s.DefaultWithholdingRate, f.DefaultWithholdingRate)
}

// overlay replaces dst when the file named a value
func overlay(dst *decimal.Decimal, src *float64) {
	if src != nil {
		*dst = decimal.NewFromFloat(*src)
	}
}

// Validate checks that the schedule is well formed. Bands must be contiguous
// and ascend from zero, with exactly one open-ended band at the end. Rates
// must be fractions between 0 and 1, and caps must be non-negative.
func (s *Schedule) Validate() error {
	if len(s.Bands) == 0 {
		return fmt.Errorf("schedule has no tax bands")
	}

	if !s.Bands[0].Lower.IsZero() {
		return fmt.Errorf("first band must start at 0, got %s", s.Bands[0].Lower)
	}

	for i, band := range s.Bands {
		if band.Rate.IsNegative() || band.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("band %q rate %s is not a fraction in [0,1]", band.Label, band.Rate)
		}

		last := i == len(s.Bands)-1
		if last {
			if !band.Unbounded() {
				return fmt.Errorf("last band %q must be open-ended", band.Label)
			}
			continue
		}
		if band.Unbounded() {
			return fmt.Errorf("band %q is open-ended but not last", band.Label)
		}
		if !band.Upper.GreaterThan(band.Lower) {
			return fmt.Errorf("band %q upper bound %s does not exceed lower bound %s", band.Label, band.Upper, band.Lower)
		}
		if !s.Bands[i+1].Lower.Equal(band.Upper) {
			return fmt.Errorf("band %q ends at %s but next band starts at %s", band.Label, band.Upper, s.Bands[i+1].Lower)
		}
	}

	for _, rate := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"pension_rate", s.PensionRate},
		{"housing_fund_rate", s.HousingFundRate},
		{"health_insurance_rate", s.HealthInsuranceRate},
		{"rent_relief_rate", s.RentReliefRate},
		{"vat_rate", s.VATRate},
		{"default_withholding_rate", s.DefaultWithholdingRate},
	} {
		if rate.value.IsNegative() || rate.value.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%s %s is not a fraction in [0,1]", rate.name, rate.value)
		}
	}

	for _, limit := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"housing_fund_annual_cap", s.HousingFundAnnualCap},
		{"rent_relief_cap", s.RentReliefCap},
		{"life_assurance_cap", s.LifeAssuranceCap},
		{"vat_registration_threshold", s.VATRegistrationThreshold},
		{"small_company_turnover_limit", s.SmallCompanyTurnoverLimit},
	} {
		if limit.value.IsNegative() {
			return fmt.Errorf("%s must not be negative, got %s", limit.name, limit.value)
		}
	}

	for category, rate := range s.WithholdingRates {
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("withholding rate for %q is not a fraction in [0,1]", category)
		}
	}

	return nil
}

// WithholdingRate returns the rate for a payment category. Categories not in
// the table get the default rate; lookups never fail.
func (s *Schedule) WithholdingRate(category string) decimal.Decimal {
	if rate, ok := s.WithholdingRates[category]; ok {
		return rate
	}
	return s.DefaultWithholdingRate
}
