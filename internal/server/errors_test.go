package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/smallbiznis/backoffice/internal/commission/domain"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
	directorydomain "github.com/smallbiznis/backoffice/internal/directory/domain"
	prepaydomain "github.com/smallbiznis/backoffice/internal/prepay/domain"
	"github.com/smallbiznis/backoffice/pkg/period"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"invalid period", period.ErrInvalidPeriod, http.StatusBadRequest, "validation_error"},
		{"invalid amount", prepaydomain.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{"unknown currency", currencydomain.ErrUnknownCurrency, http.StatusBadRequest, "validation_error"},
		{"insufficient balance", prepaydomain.ErrInsufficientBalance, http.StatusConflict, "conflict"},
		{"installment settled", contractdomain.ErrInstallmentSettled, http.StatusConflict, "conflict"},
		{"receipt overflow", contractdomain.ErrReceiptOverflow, http.StatusConflict, "conflict"},
		{"rate not found", currencydomain.ErrRateNotFound, http.StatusUnprocessableEntity, "unprocessable"},
		{"no applicable rule", commissiondomain.ErrNoApplicableRule, http.StatusUnprocessableEntity, "unprocessable"},
		{"tier table gap", commissiondomain.ErrTierTableGap, http.StatusUnprocessableEntity, "unprocessable"},
		{"user not found", directorydomain.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{"payout not found", commissiondomain.ErrPayoutNotFound, http.StatusNotFound, "not_found"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		{"nil", nil, http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantType, payload.Type)
		})
	}
}

func TestMapErrorValidationDetails(t *testing.T) {
	status, payload := mapError(newValidationError("amount", "invalid_amount", "must be positive"))
	assert.Equal(t, http.StatusBadRequest, status)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "amount", payload.Errors[0].Field)
		assert.Equal(t, "invalid_amount", payload.Errors[0].Code)
	}

	// Bare sentinel errors still surface a structured field name.
	_, payload = mapError(prepaydomain.ErrInvalidDirection)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "direction", payload.Errors[0].Field)
		assert.Equal(t, "invalid_direction", payload.Errors[0].Code)
	}
}

func TestErrorHandlingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.GET("/conflict", func(c *gin.Context) {
		AbortWithError(c, prepaydomain.ErrInsufficientBalance)
	})
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": "fine"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conflict", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient_balance")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
