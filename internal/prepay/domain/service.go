package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
)

type RecordRequest struct {
	CustomerID snowflake.ID
	Direction  string
	Amount     decimal.Decimal
	SourceType string
	SourceID   snowflake.ID
	Method     string
	Note       string
	CreatedBy  snowflake.ID
}

type ApplyRequest struct {
	CustomerID    snowflake.ID
	InstallmentID snowflake.ID
	Amount        decimal.Decimal
	AppliedDate   time.Time
	Note          string
	CreatedBy     snowflake.ID
}

type ApplyResult struct {
	Entry          LedgerEntry                `json:"entry"`
	Receipt        contractdomain.Receipt     `json:"receipt"`
	Installment    contractdomain.Installment `json:"installment"`
	ContractStatus string                     `json:"contract_status"`
	BalanceBefore  decimal.Decimal            `json:"balance_before"`
	BalanceAfter   decimal.Decimal            `json:"balance_after"`
}

type AdjustRequest struct {
	CustomerID snowflake.ID
	Direction  string
	Amount     decimal.Decimal
	Method     string
	Note       string
	CreatedBy  snowflake.ID
}

type History struct {
	Balance  decimal.Decimal     `json:"balance"`
	Entries  []LedgerEntry       `json:"entries"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// Record appends a ledger entry. Outflows re-validate the balance
	// under a row lock so the balance can never go negative.
	Record(ctx context.Context, req RecordRequest) (LedgerEntry, error)
	Balance(ctx context.Context, customerID snowflake.ID) (decimal.Decimal, error)
	// ApplyToInstallment moves prepay balance onto an installment: one
	// out entry, one prepay_apply receipt, installment and contract
	// status refreshed, all in a single transaction.
	ApplyToInstallment(ctx context.Context, req ApplyRequest) (ApplyResult, error)
	ManualAdjust(ctx context.Context, req AdjustRequest) (LedgerEntry, error)
	History(ctx context.Context, customerID snowflake.ID, p pagination.Pagination) (History, error)
}

var (
	ErrInvalidAmount                    = errors.New("invalid_amount")
	ErrInvalidDirection                 = errors.New("invalid_direction")
	ErrInsufficientBalance              = errors.New("insufficient_balance")
	ErrInsufficientInstallmentRemaining = errors.New("insufficient_installment_remaining")
	ErrCustomerNotFound                 = errors.New("customer_not_found")
	ErrInstallmentNotFound              = errors.New("installment_not_found")
	ErrInstallmentMismatch              = errors.New("installment_mismatch")
)
