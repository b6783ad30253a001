package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RateMode selects which quote a conversion uses: the rate frozen when the
// contract was signed, or the rate prevailing on the transaction date.
type RateMode string

const (
	RateModeFixed    RateMode = "fixed"
	RateModeFloating RateMode = "floating"
)

func (m RateMode) Valid() bool {
	return m == RateModeFixed || m == RateModeFloating
}

type ConvertRequest struct {
	Amount decimal.Decimal
	From   string
	To     string
	Mode   RateMode
	AsOf   time.Time
}

type UpsertCurrencyRequest struct {
	Code         string
	Name         string
	FixedRate    decimal.NullDecimal
	FloatingRate decimal.NullDecimal
}

type UpsertRateRequest struct {
	Code     string
	RateDate time.Time
	Value    decimal.Decimal
}

type Service interface {
	// Convert converts amount between currencies. Same-currency conversion
	// is the identity. A missing rate aborts the conversion; there is no
	// fallback quote.
	Convert(ctx context.Context, req ConvertRequest) (decimal.Decimal, error)
	// ConvertWithContractRate converts using the from-side rate snapshot
	// captured on the contract at signing.
	ConvertWithContractRate(ctx context.Context, amount decimal.Decimal, from, to string, contractRate decimal.Decimal) (decimal.Decimal, error)

	ListCurrencies(ctx context.Context) ([]Currency, error)
	UpsertCurrency(ctx context.Context, req UpsertCurrencyRequest) (Currency, error)
	// SyncFloatingRates records one day's floating quotes and refreshes the
	// current floating_rate snapshot on each currency.
	SyncFloatingRates(ctx context.Context, rates []UpsertRateRequest) (int, error)
}

var (
	ErrRateNotFound    = errors.New("rate_not_found")
	ErrUnknownCurrency = errors.New("unknown_currency")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidRateMode = errors.New("invalid_rate_mode")
	ErrInvalidRate     = errors.New("invalid_rate")
)
