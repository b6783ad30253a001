package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type RecordReceiptRequest struct {
	InstallmentID snowflake.ID
	Amount        decimal.Decimal
	ReceivedDate  time.Time
	Method        string
	Note          string
	// RouteOverflowToPrepay deposits any amount beyond the installment's
	// remaining due into the customer's prepay ledger instead of failing.
	RouteOverflowToPrepay bool
}

type RecordReceiptResult struct {
	Receipt           Receipt         `json:"receipt"`
	Installment       Installment     `json:"installment"`
	ContractStatus    string          `json:"contract_status"`
	OverflowToPrepay  decimal.Decimal `json:"overflow_to_prepay"`
	PrepayLedgerEntry snowflake.ID    `json:"prepay_ledger_entry,omitempty"`
}

type ContractFilter struct {
	CustomerID  snowflake.ID
	SalesUserID snowflake.ID
	Status      string
}

type InstallmentFilter struct {
	ContractID snowflake.ID
	CustomerID snowflake.ID
	Status     string
}

type ReceiptFilter struct {
	ContractID  snowflake.ID
	CustomerID  snowflake.ID
	OwnerUserID snowflake.ID
	SourceType  string
	From        time.Time
	To          time.Time
}

type Service interface {
	GetContract(ctx context.Context, id snowflake.ID) (Contract, error)
	ListContracts(ctx context.Context, filter ContractFilter) ([]Contract, error)
	ListInstallments(ctx context.Context, filter InstallmentFilter) ([]Installment, error)
	ListReceipts(ctx context.Context, filter ReceiptFilter) ([]Receipt, error)

	// RecordReceipt books a cash receipt against an installment, updates
	// the installment and contract status, and optionally routes overflow
	// into the customer's prepay ledger. One transaction.
	RecordReceipt(ctx context.Context, req RecordReceiptRequest) (RecordReceiptResult, error)

	// MarkOverdue flags unpaid installments whose due date passed asOf.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

var (
	ErrContractNotFound    = errors.New("contract_not_found")
	ErrInstallmentNotFound = errors.New("installment_not_found")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInstallmentSettled  = errors.New("installment_settled")
	ErrReceiptOverflow     = errors.New("receipt_exceeds_remaining")
)
