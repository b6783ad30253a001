package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// LockCustomerLedger serializes writers for one customer. It locks
	// the customer row, which also confirms the customer exists.
	LockCustomerLedger(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (bool, error)
	Insert(ctx context.Context, db *gorm.DB, entry *LedgerEntry) error
	SumBalance(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (decimal.Decimal, error)
	// SumDeposits totals "in" entries for the customers between from
	// (inclusive) and to (exclusive).
	SumDeposits(ctx context.Context, db *gorm.DB, customerIDs []snowflake.ID, from, to time.Time) (decimal.Decimal, error)
	List(ctx context.Context, db *gorm.DB, customerID snowflake.ID, p pagination.Pagination) ([]*LedgerEntry, error)
}
