package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
)

type SaveMonthlyRequest struct {
	UserID     snowflake.ID    `json:"user_id"`
	Month      string          `json:"month"`
	BaseSalary decimal.Decimal `json:"base_salary"`
	Attendance decimal.Decimal `json:"attendance"`
	Incentive  decimal.Decimal `json:"incentive"`
	Adjustment decimal.Decimal `json:"adjustment"`
	Deduction  decimal.Decimal `json:"deduction"`
}

type ComposeRequest struct {
	UserID          snowflake.ID
	Period          string
	DisplayCurrency string
	RateMode        currencydomain.RateMode
}

type ComposeBatchRequest struct {
	UserIDs         []snowflake.ID
	DepartmentID    snowflake.ID
	Period          string
	DisplayCurrency string
	RateMode        currencydomain.RateMode
}

type Service interface {
	SaveMonthly(ctx context.Context, req SaveMonthlyRequest) (MonthlyInput, error)
	// Compose values every configured component, folds in the period's
	// commission payout and manual adjustments, converts each line to
	// the display currency and rounds once at the end.
	Compose(ctx context.Context, req ComposeRequest) (Slip, error)
	ComposeBatch(ctx context.Context, req ComposeBatchRequest) ([]Slip, error)
}

var ErrInvalidMonth = errors.New("invalid_month")
