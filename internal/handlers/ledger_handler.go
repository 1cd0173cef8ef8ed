package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"taxready-service/internal/events"
	"taxready-service/internal/models"
	"taxready-service/internal/repository"
	"taxready-service/internal/services"
)

// recordDateLayout is the wire format for ledger record dates
const recordDateLayout = "2006-01-02"

// LedgerHandler handles ledger HTTP requests
type LedgerHandler struct {
	repo       repository.LedgerRepositoryInterface
	calculator *services.TaxCalculator
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(repo repository.LedgerRepositoryInterface, calculator *services.TaxCalculator) *LedgerHandler {
	return &LedgerHandler{
		repo:       repo,
		calculator: calculator,
	}
}

// ==================== Income ====================

// AddIncome handles POST /api/v1/ledger/income
func (h *LedgerHandler) AddIncome(c *gin.Context) {
	var req models.IncomeRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": err.Error(),
		})
		return
	}

	recordDate, err := time.Parse(recordDateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid date",
			"message": "date must be formatted YYYY-MM-DD",
		})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid amount",
			"message": "amount must be positive",
		})
		return
	}
	if req.WHTAmount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid withholding",
			"message": "whtAmount must not be negative",
		})
		return
	}

	sessionID := getSessionID(c)
	record := &models.IncomeRecord{
		SessionID:  sessionID,
		RecordDate: recordDate,
		Category:   req.Category,
		Amount:     req.Amount.Round(2),
		Client:     req.Client,
		WHTAmount:  req.WHTAmount.Round(2),
		Source:     models.RecordSourceManual,
	}
	if err := h.repo.CreateIncomeRecord(c.Request.Context(), record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to add income record",
			"message": err.Error(),
		})
		return
	}

	if publisher := events.GetPublisher(); publisher != nil {
		publisher.PublishIncomeRecorded(c.Request.Context(), sessionID,
			record.ID.String(), record.Category, string(record.Source), record.Amount)
	}

	c.JSON(http.StatusCreated, record)
}

// ListIncome handles GET /api/v1/ledger/income
func (h *LedgerHandler) ListIncome(c *gin.Context) {
	records, err := h.repo.ListIncomeRecords(c.Request.Context(), getSessionID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list income records",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, records)
}

// DeleteIncome handles DELETE /api/v1/ledger/income/:id
func (h *LedgerHandler) DeleteIncome(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid record ID",
			"message": err.Error(),
		})
		return
	}

	if err := h.repo.DeleteIncomeRecord(c.Request.Context(), getSessionID(c), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Record not found",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to delete income record",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Income record deleted successfully"})
}

// ==================== Expenses ====================

// AddExpense handles POST /api/v1/ledger/expenses
func (h *LedgerHandler) AddExpense(c *gin.Context) {
	var req models.ExpenseRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": err.Error(),
		})
		return
	}

	recordDate, err := time.Parse(recordDateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid date",
			"message": "date must be formatted YYYY-MM-DD",
		})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid amount",
			"message": "amount must be positive",
		})
		return
	}

	sessionID := getSessionID(c)
	record := &models.ExpenseRecord{
		SessionID:  sessionID,
		RecordDate: recordDate,
		Category:   req.Category,
		Amount:     req.Amount.Round(2),
		Vendor:     req.Vendor,
		Source:     models.RecordSourceManual,
	}
	if err := h.repo.CreateExpenseRecord(c.Request.Context(), record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to add expense record",
			"message": err.Error(),
		})
		return
	}

	if publisher := events.GetPublisher(); publisher != nil {
		publisher.PublishExpenseRecorded(c.Request.Context(), sessionID,
			record.ID.String(), record.Category, string(record.Source), record.Amount)
	}

	c.JSON(http.StatusCreated, record)
}

// ListExpenses handles GET /api/v1/ledger/expenses
func (h *LedgerHandler) ListExpenses(c *gin.Context) {
	records, err := h.repo.ListExpenseRecords(c.Request.Context(), getSessionID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list expense records",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, records)
}

// DeleteExpense handles DELETE /api/v1/ledger/expenses/:id
func (h *LedgerHandler) DeleteExpense(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid record ID",
			"message": err.Error(),
		})
		return
	}

	if err := h.repo.DeleteExpenseRecord(c.Request.Context(), getSessionID(c), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Record not found",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to delete expense record",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Expense record deleted successfully"})
}

// ==================== Summary & Assessment ====================

// GetSummary handles GET /api/v1/ledger/summary
func (h *LedgerHandler) GetSummary(c *gin.Context) {
	summary, err := h.repo.GetLedgerSummary(c.Request.Context(), getSessionID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get ledger summary",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RunAssessment handles POST /api/v1/ledger/assessment. The body is optional;
// an empty body runs the assessment without voluntary reliefs.
func (h *LedgerHandler) RunAssessment(c *gin.Context) {
	var req models.LedgerAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": err.Error(),
		})
		return
	}

	sessionID := getSessionID(c)
	response, err := h.calculator.AssessLedger(c.Request.Context(), sessionID, req)
	if err != nil {
		c.JSON(calculationStatus(err), gin.H{
			"error":   "Failed to run assessment",
			"message": err.Error(),
		})
		return
	}

	if publisher := events.GetPublisher(); publisher != nil {
		publisher.PublishContractorCalculated(c.Request.Context(), sessionID,
			response.GrossRevenue, response.TaxableIncome, response.NetTaxPayable)
	}

	c.JSON(http.StatusOK, response)
}

// ==================== Export ====================

// Export handles GET /api/v1/ledger/export?format=xlsx|csv
func (h *LedgerHandler) Export(c *gin.Context) {
	sessionID := getSessionID(c)

	incomes, err := h.repo.ListIncomeRecords(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to export ledger",
			"message": err.Error(),
		})
		return
	}
	expenses, err := h.repo.ListExpenseRecords(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to export ledger",
			"message": err.Error(),
		})
		return
	}

	switch c.DefaultQuery("format", "xlsx") {
	case "xlsx":
		h.exportXLSX(c, sessionID, incomes, expenses)
	case "csv":
		h.exportCSV(c, incomes, expenses)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid format",
			"message": "format must be xlsx or csv",
		})
	}
}

// exportXLSX generates and downloads the ledger as an Excel workbook
func (h *LedgerHandler) exportXLSX(c *gin.Context, sessionID string, incomes []models.IncomeRecord, expenses []models.ExpenseRecord) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", "Income")

	// Style for header rows
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	incomeHeaders := []string{"Date", "Category", "Amount", "Client", "WHT Withheld", "Source"}
	for i, header := range incomeHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Income", cell, header)
		f.SetCellStyle("Income", cell, cell, headerStyle)
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth("Income", colName, colName, 20)
	}
	for i, record := range incomes {
		row := i + 2
		f.SetCellValue("Income", fmt.Sprintf("A%d", row), record.RecordDate.Format(recordDateLayout))
		f.SetCellValue("Income", fmt.Sprintf("B%d", row), record.Category)
		f.SetCellValue("Income", fmt.Sprintf("C%d", row), record.Amount.InexactFloat64())
		f.SetCellValue("Income", fmt.Sprintf("D%d", row), record.Client)
		f.SetCellValue("Income", fmt.Sprintf("E%d", row), record.WHTAmount.InexactFloat64())
		f.SetCellValue("Income", fmt.Sprintf("F%d", row), string(record.Source))
	}

	f.NewSheet("Expenses")
	expenseHeaders := []string{"Date", "Category", "Amount", "Vendor", "Source"}
	for i, header := range expenseHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Expenses", cell, header)
		f.SetCellStyle("Expenses", cell, cell, headerStyle)
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth("Expenses", colName, colName, 20)
	}
	for i, record := range expenses {
		row := i + 2
		f.SetCellValue("Expenses", fmt.Sprintf("A%d", row), record.RecordDate.Format(recordDateLayout))
		f.SetCellValue("Expenses", fmt.Sprintf("B%d", row), record.Category)
		f.SetCellValue("Expenses", fmt.Sprintf("C%d", row), record.Amount.InexactFloat64())
		f.SetCellValue("Expenses", fmt.Sprintf("D%d", row), record.Vendor)
		f.SetCellValue("Expenses", fmt.Sprintf("E%d", row), string(record.Source))
	}

	// Summary sheet with the session totals
	if summary, err := h.repo.GetLedgerSummary(c.Request.Context(), sessionID); err == nil {
		f.NewSheet("Summary")
		f.SetCellValue("Summary", "A1", "Ledger Summary")
		rows := []struct {
			label string
			value float64
		}{
			{"Total Income", summary.TotalIncome.InexactFloat64()},
			{"Total Expenses", summary.TotalExpenses.InexactFloat64()},
			{"Net Profit", summary.NetProfit.InexactFloat64()},
			{"WHT Credits", summary.WHTCredits.InexactFloat64()},
		}
		for i, row := range rows {
			f.SetCellValue("Summary", fmt.Sprintf("A%d", i+3), row.label)
			f.SetCellValue("Summary", fmt.Sprintf("B%d", i+3), row.value)
		}
		f.SetColWidth("Summary", "A", "A", 25)
		f.SetColWidth("Summary", "B", "B", 20)
	}

	sheetIdx, _ := f.GetSheetIndex("Income")
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=tax_ledger_export.xlsx")

	f.Write(c.Writer)
}

// exportCSV generates and downloads the ledger as a single CSV table
func (h *LedgerHandler) exportCSV(c *gin.Context, incomes []models.IncomeRecord, expenses []models.ExpenseRecord) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=tax_ledger_export.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"Type", "Date", "Category", "Amount", "Counterparty", "WHT Withheld", "Source"})
	for _, record := range incomes {
		writer.Write([]string{
			"INCOME",
			record.RecordDate.Format(recordDateLayout),
			record.Category,
			record.Amount.StringFixed(2),
			record.Client,
			record.WHTAmount.StringFixed(2),
			string(record.Source),
		})
	}
	for _, record := range expenses {
		writer.Write([]string{
			"EXPENSE",
			record.RecordDate.Format(recordDateLayout),
			record.Category,
			record.Amount.StringFixed(2),
			record.Vendor,
			"",
			string(record.Source),
		})
	}
}
