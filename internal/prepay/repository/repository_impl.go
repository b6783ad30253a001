package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/prepay/domain"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) LockCustomerLedger(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (bool, error) {
	var row struct {
		ID snowflake.ID
	}
	err := db.WithContext(ctx).
		Table("customers").
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Select("id").
		Where("id = ?", customerID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return false, err
	}
	return row.ID != 0, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.LedgerEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) SumBalance(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (decimal.Decimal, error) {
	var row struct {
		Balance decimal.Decimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE -amount END), 0) AS balance
		 FROM prepay_ledger_entries WHERE customer_id = ?`,
		domain.DirectionIn, customerID,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Balance, nil
}

func (r *repo) SumDeposits(ctx context.Context, db *gorm.DB, customerIDs []snowflake.ID, from, to time.Time) (decimal.Decimal, error) {
	if len(customerIDs) == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total
		 FROM prepay_ledger_entries
		 WHERE customer_id IN (?) AND direction = ?
		   AND created_at >= ? AND created_at < ?`,
		customerIDs, domain.DirectionIn, from.UTC(), to.UTC(),
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, customerID snowflake.ID, p pagination.Pagination) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	stmt := db.WithContext(ctx).
		Model(&domain.LedgerEntry{}).
		Where("customer_id = ?", customerID)
	if p.PageToken != "" {
		if cursor, err := pagination.DecodeCursor(p.PageToken); err == nil && cursor.ID != "" {
			if id, err := snowflake.ParseString(cursor.ID); err == nil {
				stmt = stmt.Where("id < ?", id)
			}
		}
	}
	limit := p.PageSize
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	if err := stmt.Order("id DESC").Limit(limit + 1).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
