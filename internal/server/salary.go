package server

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
	salarydomain "github.com/smallbiznis/backoffice/internal/salary/domain"
)

type saveMonthlyRequest struct {
	UserID     string          `json:"user_id"`
	Month      string          `json:"month"`
	BaseSalary decimal.Decimal `json:"base_salary"`
	Attendance decimal.Decimal `json:"attendance"`
	Incentive  decimal.Decimal `json:"incentive"`
	Adjustment decimal.Decimal `json:"adjustment"`
	Deduction  decimal.Decimal `json:"deduction"`
}

func (s *Server) SaveSalaryMonthly(c *gin.Context) {
	var req saveMonthlyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	userID, err := parseSnowflakeID(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user_id"))
		return
	}

	input, err := s.salarySvc.SaveMonthly(c.Request.Context(), salarydomain.SaveMonthlyRequest{
		UserID:     userID,
		Month:      req.Month,
		BaseSalary: req.BaseSalary,
		Attendance: req.Attendance,
		Incentive:  req.Incentive,
		Adjustment: req.Adjustment,
		Deduction:  req.Deduction,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": input})
}

func (s *Server) GetSalarySlip(c *gin.Context) {
	userID, err := parseSnowflakeID(c.Param("user"))
	if err != nil {
		AbortWithError(c, newValidationError("user", "invalid_user_id", "invalid user id"))
		return
	}

	var query struct {
		DisplayCurrency string `form:"display_currency"`
		RateMode        string `form:"rate_mode,default=fixed"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	slip, err := s.salarySvc.Compose(c.Request.Context(), salarydomain.ComposeRequest{
		UserID:          userID,
		Period:          c.Param("period"),
		DisplayCurrency: query.DisplayCurrency,
		RateMode:        currencydomain.RateMode(query.RateMode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": slip})
}

type exportSlipsRequest struct {
	UserIDs         []string `json:"user_ids"`
	DepartmentID    string   `json:"department_id"`
	Period          string   `json:"period"`
	DisplayCurrency string   `json:"display_currency"`
	RateMode        string   `json:"rate_mode"`
}

// ExportSalarySlips renders one PDF per slip and streams them back as
// a zip archive.
func (s *Server) ExportSalarySlips(c *gin.Context) {
	var req exportSlipsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	batch := salarydomain.ComposeBatchRequest{
		Period:          req.Period,
		DisplayCurrency: req.DisplayCurrency,
		RateMode:        currencydomain.RateMode(req.RateMode),
	}
	if batch.RateMode == "" {
		batch.RateMode = currencydomain.RateModeFixed
	}
	for _, raw := range req.UserIDs {
		userID, err := parseSnowflakeID(raw)
		if err != nil {
			AbortWithError(c, newValidationError("user_ids", "invalid_user_id", "invalid user id"))
			return
		}
		batch.UserIDs = append(batch.UserIDs, userID)
	}
	departmentID, err := parseOptionalSnowflakeID(req.DepartmentID)
	if err != nil {
		AbortWithError(c, newValidationError("department_id", "invalid_department_id", "invalid department_id"))
		return
	}
	batch.DepartmentID = departmentID

	slips, err := s.salarySvc.ComposeBatch(c.Request.Context(), batch)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, slip := range slips {
		doc, err := s.pdfProvider.GenerateSlip(c.Request.Context(), slip)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		entry, err := zw.Create(fmt.Sprintf("slip_%s_%s.pdf", slip.UserID, slip.Period))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if _, err := io.Copy(entry, doc); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	if err := zw.Close(); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="slips_%s.zip"`, req.Period))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}
