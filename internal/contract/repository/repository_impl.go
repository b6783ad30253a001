package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/contract/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindContract(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Contract, error) {
	var contract domain.Contract
	err := db.WithContext(ctx).Raw(
		`SELECT id, customer_id, sales_user_id, title, sign_date, net_amount,
		        currency, fixed_rate_snapshot, is_first, status, created_at, updated_at
		 FROM contracts WHERE id = ?`,
		id,
	).Scan(&contract).Error
	if err != nil {
		return nil, err
	}
	if contract.ID == 0 {
		return nil, nil
	}
	return &contract, nil
}

func (r *repo) ListContracts(ctx context.Context, db *gorm.DB, filter domain.ContractFilter) ([]*domain.Contract, error) {
	var contracts []*domain.Contract
	stmt := db.WithContext(ctx).Model(&domain.Contract{})
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.SalesUserID != 0 {
		stmt = stmt.Where("sales_user_id = ?", filter.SalesUserID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if err := stmt.Order("sign_date DESC, id DESC").Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *repo) UpdateContractStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE contracts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	).Error
}

func (r *repo) FindInstallment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Installment, error) {
	return r.findInstallment(ctx, db, id, false)
}

func (r *repo) FindInstallmentForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Installment, error) {
	return r.findInstallment(ctx, db, id, true)
}

func (r *repo) findInstallment(ctx context.Context, db *gorm.DB, id snowflake.ID, lock bool) (*domain.Installment, error) {
	var installment domain.Installment
	stmt := db.WithContext(ctx).Model(&domain.Installment{})
	if lock {
		stmt = stmt.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	err := stmt.Where("id = ?", id).Limit(1).Find(&installment).Error
	if err != nil {
		return nil, err
	}
	if installment.ID == 0 {
		return nil, nil
	}
	return &installment, nil
}

func (r *repo) ListInstallments(ctx context.Context, db *gorm.DB, filter domain.InstallmentFilter) ([]*domain.Installment, error) {
	var installments []*domain.Installment
	stmt := db.WithContext(ctx).Model(&domain.Installment{})
	if filter.ContractID != 0 {
		stmt = stmt.Where("contract_id = ?", filter.ContractID)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if err := stmt.Order("due_date, installment_no").Find(&installments).Error; err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *repo) CountUnpaidInstallments(ctx context.Context, db *gorm.DB, contractID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM installments WHERE contract_id = ? AND status <> ?`,
		contractID, domain.InstallmentStatusPaid,
	).Scan(&count).Error
	return count, err
}

func (r *repo) UpdateInstallmentPayment(ctx context.Context, db *gorm.DB, id snowflake.ID, amountPaid decimal.Decimal, status string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE installments SET amount_paid = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		amountPaid, status, id,
	).Error
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, asOf time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE installments SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE due_date < ? AND status IN (?, ?)`,
		domain.InstallmentStatusOverdue,
		asOf.UTC().Format("2006-01-02"),
		domain.InstallmentStatusPending, domain.InstallmentStatusPartial,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) InsertReceipt(ctx context.Context, db *gorm.DB, receipt *domain.Receipt) error {
	return db.WithContext(ctx).Create(receipt).Error
}

func (r *repo) ListReceipts(ctx context.Context, db *gorm.DB, filter domain.ReceiptFilter) ([]*domain.Receipt, error) {
	var receipts []*domain.Receipt
	stmt := db.WithContext(ctx).Model(&domain.Receipt{})
	if filter.ContractID != 0 {
		stmt = stmt.Where("contract_id = ?", filter.ContractID)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.OwnerUserID != 0 {
		stmt = stmt.Where("sales_user_id_snapshot = ?", filter.OwnerUserID)
	}
	if filter.SourceType != "" {
		stmt = stmt.Where("source_type = ?", filter.SourceType)
	}
	if !filter.From.IsZero() {
		stmt = stmt.Where("received_date >= ?", filter.From.UTC().Format("2006-01-02"))
	}
	if !filter.To.IsZero() {
		stmt = stmt.Where("received_date < ?", filter.To.UTC().Format("2006-01-02"))
	}
	if err := stmt.Order("received_date, id").Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *repo) FirstPaymentDate(ctx context.Context, db *gorm.DB, contractID snowflake.ID) (*time.Time, error) {
	var row struct {
		ReceivedDate *time.Time
	}
	err := db.WithContext(ctx).Raw(
		`SELECT received_date FROM receipts WHERE contract_id = ? ORDER BY received_date, id LIMIT 1`,
		contractID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.ReceivedDate, nil
}
