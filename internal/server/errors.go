package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/smallbiznis/backoffice/internal/commission/domain"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
	directorydomain "github.com/smallbiznis/backoffice/internal/directory/domain"
	prepaydomain "github.com/smallbiznis/backoffice/internal/prepay/domain"
	salarydomain "github.com/smallbiznis/backoffice/internal/salary/domain"
	"github.com/smallbiznis/backoffice/pkg/period"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isUnprocessableError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, period.ErrInvalidPeriod),
		errors.Is(err, currencydomain.ErrInvalidAmount),
		errors.Is(err, currencydomain.ErrInvalidRateMode),
		errors.Is(err, currencydomain.ErrInvalidRate),
		errors.Is(err, currencydomain.ErrUnknownCurrency),
		errors.Is(err, prepaydomain.ErrInvalidAmount),
		errors.Is(err, prepaydomain.ErrInvalidDirection),
		errors.Is(err, contractdomain.ErrInvalidAmount),
		errors.Is(err, commissiondomain.ErrInvalidScope),
		errors.Is(err, commissiondomain.ErrInvalidRuleType),
		errors.Is(err, salarydomain.ErrInvalidMonth):
		return true
	default:
		return false
	}
}

// Conflicts are state races: the request was well formed but the
// ledger or installment no longer has room for it.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, prepaydomain.ErrInsufficientBalance),
		errors.Is(err, prepaydomain.ErrInsufficientInstallmentRemaining),
		errors.Is(err, prepaydomain.ErrInstallmentMismatch),
		errors.Is(err, contractdomain.ErrInstallmentSettled),
		errors.Is(err, contractdomain.ErrReceiptOverflow):
		return true
	default:
		return false
	}
}

// Unprocessable means configuration is missing or defective: no rate
// for the requested date, no applicable rule, a broken tier table.
func isUnprocessableError(err error) bool {
	switch {
	case errors.Is(err, currencydomain.ErrRateNotFound),
		errors.Is(err, commissiondomain.ErrNoApplicableRule),
		errors.Is(err, commissiondomain.ErrTierTableGap),
		errors.Is(err, commissiondomain.ErrInvalidTierTable),
		errors.Is(err, commissiondomain.ErrInvalidRate):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, directorydomain.ErrUserNotFound),
		errors.Is(err, directorydomain.ErrDepartmentNotFound),
		errors.Is(err, contractdomain.ErrContractNotFound),
		errors.Is(err, contractdomain.ErrInstallmentNotFound),
		errors.Is(err, prepaydomain.ErrCustomerNotFound),
		errors.Is(err, prepaydomain.ErrInstallmentNotFound),
		errors.Is(err, commissiondomain.ErrRuleNotFound),
		errors.Is(err, commissiondomain.ErrPayoutNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
