package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordSource indicates how a ledger row entered the system.
type RecordSource string

const (
	RecordSourceManual       RecordSource = "MANUAL"
	RecordSourceInvoiceEvent RecordSource = "INVOICE_EVENT"
)

// IncomeRecord is one income row in a session's ledger. Withholding already
// deducted by the payer is tracked per row so the session's credits can be
// summed and offset against the computed liability.
type IncomeRecord struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID  string          `json:"sessionId" gorm:"type:varchar(255);not null;index:idx_income_records_session"`
	RecordDate time.Time       `json:"recordDate" gorm:"type:date;not null"`
	Category   string          `json:"category" gorm:"type:varchar(100);not null"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(18,2);not null"`
	Client     string          `json:"client" gorm:"type:varchar(255)"`
	WHTAmount  decimal.Decimal `json:"whtAmount" gorm:"type:numeric(18,2);not null;default:0"`
	Source     RecordSource    `json:"source" gorm:"type:varchar(50);not null;default:'MANUAL'"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ExpenseRecord is one deductible business expense row in a session's ledger.
type ExpenseRecord struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID  string          `json:"sessionId" gorm:"type:varchar(255);not null;index:idx_expense_records_session"`
	RecordDate time.Time       `json:"recordDate" gorm:"type:date;not null"`
	Category   string          `json:"category" gorm:"type:varchar(100);not null"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(18,2);not null"`
	Vendor     string          `json:"vendor" gorm:"type:varchar(255)"`
	Source     RecordSource    `json:"source" gorm:"type:varchar(50);not null;default:'MANUAL'"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// LedgerSummary aggregates one session's ledger: total income, total expenses,
// the resulting net profit, and the withholding credits collected on income.
type LedgerSummary struct {
	SessionID     string          `json:"sessionId"`
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	NetProfit     decimal.Decimal `json:"netProfit"`
	WHTCredits    decimal.Decimal `json:"whtCredits"`
	IncomeCount   int64           `json:"incomeCount"`
	ExpenseCount  int64           `json:"expenseCount"`
}
