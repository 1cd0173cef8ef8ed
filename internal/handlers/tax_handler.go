package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taxready-service/internal/events"
	"taxready-service/internal/models"
	"taxready-service/internal/repository"
	"taxready-service/internal/services"
)

// TaxHandler handles tax calculation HTTP requests
type TaxHandler struct {
	calculator *services.TaxCalculator
}

// NewTaxHandler creates a new tax handler
func NewTaxHandler(calculator *services.TaxCalculator) *TaxHandler {
	return &TaxHandler{
		calculator: calculator,
	}
}

// CalculatePaye handles POST /api/v1/tax/calculations/paye
func (h *TaxHandler) CalculatePaye(c *gin.Context) {
	var req models.PayeCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": err.Error(),
		})
		return
	}

	response, err := h.calculator.CalculatePaye(c.Request.Context(), req)
	if err != nil {
		c.JSON(calculationStatus(err), gin.H{
			"error":   "Failed to calculate PAYE",
			"message": err.Error(),
		})
		return
	}

	if publisher := events.GetPublisher(); publisher != nil {
		publisher.PublishPayeCalculated(c.Request.Context(), getSessionID(c),
			response.Income.GrossAnnual, response.TaxableIncome, response.AnnualTax, response.EffectiveRate)
	}

	c.JSON(http.StatusOK, response)
}

// CalculateContractor handles POST /api/v1/tax/calculations/contractor
func (h *TaxHandler) CalculateContractor(c *gin.Context) {
	var req models.ContractorCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": err.Error(),
		})
		return
	}

	response, err := h.calculator.CalculateContractorTax(c.Request.Context(), req)
	if err != nil {
		c.JSON(calculationStatus(err), gin.H{
			"error":   "Failed to calculate contractor tax",
			"message": err.Error(),
		})
		return
	}

	if publisher := events.GetPublisher(); publisher != nil {
		publisher.PublishContractorCalculated(c.Request.Context(), getSessionID(c),
			response.GrossRevenue, response.TaxableIncome, response.NetTaxPayable)
	}

	c.JSON(http.StatusOK, response)
}

// EstimateWithholding handles POST /api/v1/tax/calculations/withholding
func (h *TaxHandler) EstimateWithholding(c *gin.Context) {
	var req models.WithholdingEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": err.Error(),
		})
		return
	}

	response, err := h.calculator.EstimateWithholding(req)
	if err != nil {
		c.JSON(calculationStatus(err), gin.H{
			"error":   "Failed to estimate withholding",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

// Compare handles POST /api/v1/tax/calculations/compare
func (h *TaxHandler) Compare(c *gin.Context) {
	var req models.ComparisonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": err.Error(),
		})
		return
	}

	response, err := h.calculator.CompareEmployeeVsContractor(c.Request.Context(), req)
	if err != nil {
		c.JSON(calculationStatus(err), gin.H{
			"error":   "Failed to compare scenarios",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetBands handles GET /api/v1/tax/bands
func (h *TaxHandler) GetBands(c *gin.Context) {
	rules := h.calculator.Rules()

	bands := make([]models.BandInfo, 0, len(rules.Bands))
	for _, band := range rules.Bands {
		info := models.BandInfo{
			Label: band.Label,
			Lower: band.Lower,
			Rate:  band.Rate,
		}
		if !band.Unbounded() {
			upper := band.Upper
			info.Upper = &upper
			// Cumulative tax owed by someone earning exactly the band ceiling
			if result, err := h.calculator.ComputeTax(band.Upper); err == nil {
				cumulative := result.TotalTax
				info.CumulativeTax = &cumulative
			}
		}
		bands = append(bands, info)
	}

	c.JSON(http.StatusOK, models.BandsResponse{
		EffectiveDate: rules.EffectiveDate,
		Bands:         bands,
	})
}

// GetReference handles GET /api/v1/tax/reference
func (h *TaxHandler) GetReference(c *gin.Context) {
	rules := h.calculator.Rules()

	days := 0
	if effective, err := time.Parse("2006-01-02", rules.EffectiveDate); err == nil {
		if until := time.Until(effective); until > 0 {
			days = int(until.Hours()/24) + 1
		}
	}

	c.JSON(http.StatusOK, models.ReferenceResponse{
		EffectiveDate:      rules.EffectiveDate,
		DaysUntilEffective: days,
		Rules:              rules,
	})
}

// calculationStatus maps calculation errors to HTTP status codes
func calculationStatus(err error) int {
	if errors.Is(err, services.ErrNegativeAmount) || errors.Is(err, services.ErrInvalidExpenseRatio) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Helper function to get session ID from context
func getSessionID(c *gin.Context) string {
	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		return repository.DefaultSessionID
	}
	return sessionID
}
