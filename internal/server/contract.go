package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
)

func (s *Server) ListContracts(c *gin.Context) {
	var query struct {
		CustomerID  string `form:"customer_id"`
		SalesUserID string `form:"sales_user_id"`
		Status      string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	customerID, err := parseOptionalSnowflakeID(query.CustomerID)
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}
	salesUserID, err := parseOptionalSnowflakeID(query.SalesUserID)
	if err != nil {
		AbortWithError(c, newValidationError("sales_user_id", "invalid_sales_user_id", "invalid sales_user_id"))
		return
	}

	contracts, err := s.contractSvc.ListContracts(c.Request.Context(), contractdomain.ContractFilter{
		CustomerID:  customerID,
		SalesUserID: salesUserID,
		Status:      query.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": contracts})
}

func (s *Server) GetContract(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_contract_id", "invalid contract id"))
		return
	}

	contract, err := s.contractSvc.GetContract(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": contract})
}

func (s *Server) ListContractInstallments(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_contract_id", "invalid contract id"))
		return
	}

	installments, err := s.contractSvc.ListInstallments(c.Request.Context(), contractdomain.InstallmentFilter{
		ContractID: id,
		Status:     c.Query("status"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": installments})
}

func (s *Server) ListReceipts(c *gin.Context) {
	var query struct {
		ContractID  string `form:"contract_id"`
		CustomerID  string `form:"customer_id"`
		OwnerUserID string `form:"owner_user_id"`
		SourceType  string `form:"source_type"`
		From        string `form:"from"`
		To          string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	contractID, err := parseOptionalSnowflakeID(query.ContractID)
	if err != nil {
		AbortWithError(c, newValidationError("contract_id", "invalid_contract_id", "invalid contract_id"))
		return
	}
	customerID, err := parseOptionalSnowflakeID(query.CustomerID)
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}
	ownerUserID, err := parseOptionalSnowflakeID(query.OwnerUserID)
	if err != nil {
		AbortWithError(c, newValidationError("owner_user_id", "invalid_owner_user_id", "invalid owner_user_id"))
		return
	}
	from, err := parseOptionalDate(query.From)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalDate(query.To)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	receipts, err := s.contractSvc.ListReceipts(c.Request.Context(), contractdomain.ReceiptFilter{
		ContractID:  contractID,
		CustomerID:  customerID,
		OwnerUserID: ownerUserID,
		SourceType:  query.SourceType,
		From:        from,
		To:          to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": receipts})
}

type recordReceiptRequest struct {
	InstallmentID         string          `json:"installment_id"`
	Amount                decimal.Decimal `json:"amount"`
	ReceivedDate          string          `json:"received_date"`
	Method                string          `json:"method"`
	Note                  string          `json:"note"`
	RouteOverflowToPrepay bool            `json:"route_overflow_to_prepay"`
}

func (s *Server) RecordReceipt(c *gin.Context) {
	var req recordReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	installmentID, err := parseSnowflakeID(req.InstallmentID)
	if err != nil {
		AbortWithError(c, newValidationError("installment_id", "invalid_installment_id", "invalid installment_id"))
		return
	}
	receivedDate, err := parseOptionalDate(req.ReceivedDate)
	if err != nil {
		AbortWithError(c, newValidationError("received_date", "invalid_received_date", "invalid received_date"))
		return
	}

	result, err := s.contractSvc.RecordReceipt(c.Request.Context(), contractdomain.RecordReceiptRequest{
		InstallmentID:         installmentID,
		Amount:                req.Amount,
		ReceivedDate:          receivedDate,
		Method:                req.Method,
		Note:                  req.Note,
		RouteOverflowToPrepay: req.RouteOverflowToPrepay,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
