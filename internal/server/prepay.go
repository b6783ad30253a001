package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	prepaydomain "github.com/smallbiznis/backoffice/internal/prepay/domain"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
)

func (s *Server) GetPrepayHistory(c *gin.Context) {
	customerID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_customer_id", "invalid customer id"))
		return
	}

	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	history, err := s.prepaySvc.History(c.Request.Context(), customerID, query)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": history})
}

type adjustPrepayRequest struct {
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Note      string          `json:"note"`
	CreatedBy string          `json:"created_by"`
}

func (s *Server) AdjustPrepay(c *gin.Context) {
	customerID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_customer_id", "invalid customer id"))
		return
	}

	var req adjustPrepayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	createdBy, err := parseOptionalSnowflakeID(req.CreatedBy)
	if err != nil {
		AbortWithError(c, newValidationError("created_by", "invalid_created_by", "invalid created_by"))
		return
	}

	entry, err := s.prepaySvc.ManualAdjust(c.Request.Context(), prepaydomain.AdjustRequest{
		CustomerID: customerID,
		Direction:  req.Direction,
		Amount:     req.Amount,
		Method:     req.Method,
		Note:       req.Note,
		CreatedBy:  createdBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

type applyPrepayRequest struct {
	InstallmentID string          `json:"installment_id"`
	Amount        decimal.Decimal `json:"amount"`
	AppliedDate   string          `json:"applied_date"`
	Note          string          `json:"note"`
	CreatedBy     string          `json:"created_by"`
}

func (s *Server) ApplyPrepay(c *gin.Context) {
	customerID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_customer_id", "invalid customer id"))
		return
	}

	var req applyPrepayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	installmentID, err := parseSnowflakeID(req.InstallmentID)
	if err != nil {
		AbortWithError(c, newValidationError("installment_id", "invalid_installment_id", "invalid installment_id"))
		return
	}
	appliedDate, err := parseOptionalDate(req.AppliedDate)
	if err != nil {
		AbortWithError(c, newValidationError("applied_date", "invalid_applied_date", "invalid applied_date"))
		return
	}
	createdBy, err := parseOptionalSnowflakeID(req.CreatedBy)
	if err != nil {
		AbortWithError(c, newValidationError("created_by", "invalid_created_by", "invalid created_by"))
		return
	}

	result, err := s.prepaySvc.ApplyToInstallment(c.Request.Context(), prepaydomain.ApplyRequest{
		CustomerID:    customerID,
		InstallmentID: installmentID,
		Amount:        req.Amount,
		AppliedDate:   appliedDate,
		Note:          req.Note,
		CreatedBy:     createdBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
