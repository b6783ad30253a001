package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	FindContract(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Contract, error)
	ListContracts(ctx context.Context, db *gorm.DB, filter ContractFilter) ([]*Contract, error)
	UpdateContractStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status string) error

	FindInstallment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Installment, error)
	// FindInstallmentForUpdate locks the row until the surrounding
	// transaction commits.
	FindInstallmentForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Installment, error)
	ListInstallments(ctx context.Context, db *gorm.DB, filter InstallmentFilter) ([]*Installment, error)
	CountUnpaidInstallments(ctx context.Context, db *gorm.DB, contractID snowflake.ID) (int64, error)
	UpdateInstallmentPayment(ctx context.Context, db *gorm.DB, id snowflake.ID, amountPaid decimal.Decimal, status string) error
	MarkOverdue(ctx context.Context, db *gorm.DB, asOf time.Time) (int64, error)

	InsertReceipt(ctx context.Context, db *gorm.DB, receipt *Receipt) error
	ListReceipts(ctx context.Context, db *gorm.DB, filter ReceiptFilter) ([]*Receipt, error)
	// FirstPaymentDate is the earliest received_date on the contract, nil
	// when nothing has been received yet.
	FirstPaymentDate(ctx context.Context, db *gorm.DB, contractID snowflake.ID) (*time.Time, error)
}
