package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
	contractrepo "github.com/smallbiznis/backoffice/internal/contract/repository"
	"github.com/smallbiznis/backoffice/internal/prepay/domain"
	"github.com/smallbiznis/backoffice/internal/prepay/repository"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type testEnv struct {
	db   *gorm.DB
	svc  domain.Service
	clk  *clock.FakeClock
	node *snowflake.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// SQLite cannot parse FOR UPDATE; drop the locking clause before the
	// query builder renders it.
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_strip_locking", func(d *gorm.DB) {
		delete(d.Statement.Clauses, "FOR UPDATE")
	}))

	require.NoError(t, db.AutoMigrate(
		&domain.LedgerEntry{},
		&contractdomain.Contract{}, &contractdomain.Installment{}, &contractdomain.Receipt{},
	))
	require.NoError(t, db.Exec(`CREATE TABLE customers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		owner_user_id INTEGER,
		status INTEGER NOT NULL DEFAULT 1
	)`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC))

	env := &testEnv{db: db, clk: clk, node: node}
	env.svc = New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Contracts: contractrepo.Provide(),
	})
	return env
}

func (e *testEnv) addCustomer(t *testing.T) snowflake.ID {
	t.Helper()
	id := e.node.Generate()
	require.NoError(t, e.db.Exec(
		`INSERT INTO customers (id, name) VALUES (?, ?)`, id, fmt.Sprintf("customer-%d", id),
	).Error)
	return id
}

func (e *testEnv) addContractWithInstallment(t *testing.T, customerID snowflake.ID, due string) (snowflake.ID, snowflake.ID) {
	t.Helper()

	contract := contractdomain.Contract{
		ID:         e.node.Generate(),
		CustomerID: customerID,
		Title:      "test contract",
		SignDate:   time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		NetAmount:  d(due),
		Currency:   "CNY",
		Status:     contractdomain.ContractStatusActive,
	}
	require.NoError(t, e.db.Create(&contract).Error)

	installment := contractdomain.Installment{
		ID:            e.node.Generate(),
		ContractID:    contract.ID,
		CustomerID:    customerID,
		InstallmentNo: 1,
		DueDate:       time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
		AmountDue:     d(due),
		AmountPaid:    decimal.Zero,
		Status:        contractdomain.InstallmentStatusPending,
	}
	require.NoError(t, e.db.Create(&installment).Error)
	return contract.ID, installment.ID
}

func (e *testEnv) deposit(t *testing.T, customerID snowflake.ID, amount string) {
	t.Helper()
	_, err := e.svc.Record(context.Background(), domain.RecordRequest{
		CustomerID: customerID,
		Direction:  domain.DirectionIn,
		Amount:     d(amount),
		SourceType: domain.SourceManualAdjust,
	})
	require.NoError(t, err)
}

func TestRecordValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.addCustomer(t)

	_, err := env.svc.Record(ctx, domain.RecordRequest{
		CustomerID: customerID, Direction: "sideways", Amount: d("10"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDirection)

	_, err = env.svc.Record(ctx, domain.RecordRequest{
		CustomerID: customerID, Direction: domain.DirectionIn, Amount: decimal.Zero,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = env.svc.Record(ctx, domain.RecordRequest{
		CustomerID: env.node.Generate(), Direction: domain.DirectionIn, Amount: d("10"),
		SourceType: domain.SourceManualAdjust,
	})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestBalanceNeverGoesNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.addCustomer(t)

	env.deposit(t, customerID, "100")

	_, err := env.svc.Record(ctx, domain.RecordRequest{
		CustomerID: customerID, Direction: domain.DirectionOut, Amount: d("30"),
		SourceType: domain.SourceManualAdjust,
	})
	require.NoError(t, err)

	balance, err := env.svc.Balance(ctx, customerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("70")), "balance %s", balance)

	_, err = env.svc.Record(ctx, domain.RecordRequest{
		CustomerID: customerID, Direction: domain.DirectionOut, Amount: d("100"),
		SourceType: domain.SourceManualAdjust,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// The failed withdrawal left no trace.
	balance, err = env.svc.Balance(ctx, customerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("70")), "balance %s", balance)
}

func TestManualAdjustFoldsMethodIntoNote(t *testing.T) {
	env := newTestEnv(t)
	customerID := env.addCustomer(t)

	entry, err := env.svc.ManualAdjust(context.Background(), domain.AdjustRequest{
		CustomerID: customerID,
		Direction:  domain.DirectionIn,
		Amount:     d("500"),
		Method:     "wire",
		Note:       "initial deposit",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceManualAdjust, entry.SourceType)
	assert.Equal(t, "initial deposit (wire)", entry.Note)
}

func TestApplyToInstallment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.addCustomer(t)
	contractID, installmentID := env.addContractWithInstallment(t, customerID, "300")

	env.deposit(t, customerID, "500")

	result, err := env.svc.ApplyToInstallment(ctx, domain.ApplyRequest{
		CustomerID:    customerID,
		InstallmentID: installmentID,
		Amount:        d("200"),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DirectionOut, result.Entry.Direction)
	assert.Equal(t, domain.SourceApplyToInstallment, result.Entry.SourceType)
	assert.Equal(t, installmentID, result.Entry.SourceID)

	// The receipt records the application without recognizing new cash.
	assert.Equal(t, contractdomain.ReceiptSourcePrepayApply, result.Receipt.SourceType)
	assert.True(t, result.Receipt.AmountReceived.IsZero())
	assert.True(t, result.Receipt.AmountApplied.Equal(d("200")))
	assert.Equal(t, contractID, result.Receipt.ContractID)

	assert.Equal(t, contractdomain.InstallmentStatusPartial, result.Installment.Status)
	assert.Equal(t, contractdomain.ContractStatusActive, result.ContractStatus)
	assert.True(t, result.BalanceBefore.Equal(d("500")))
	assert.True(t, result.BalanceAfter.Equal(d("300")))

	// Overpaying the remaining 100 is refused.
	_, err = env.svc.ApplyToInstallment(ctx, domain.ApplyRequest{
		CustomerID:    customerID,
		InstallmentID: installmentID,
		Amount:        d("150"),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientInstallmentRemaining)

	// Settling the last installment closes the contract.
	result, err = env.svc.ApplyToInstallment(ctx, domain.ApplyRequest{
		CustomerID:    customerID,
		InstallmentID: installmentID,
		Amount:        d("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, contractdomain.InstallmentStatusPaid, result.Installment.Status)
	assert.Equal(t, contractdomain.ContractStatusClosed, result.ContractStatus)
	assert.True(t, result.BalanceAfter.Equal(d("200")))
}

func TestApplyToInstallmentGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.addCustomer(t)
	otherCustomerID := env.addCustomer(t)
	_, installmentID := env.addContractWithInstallment(t, customerID, "300")

	_, err := env.svc.ApplyToInstallment(ctx, domain.ApplyRequest{
		CustomerID: customerID, InstallmentID: installmentID, Amount: decimal.Zero,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = env.svc.ApplyToInstallment(ctx, domain.ApplyRequest{
		CustomerID: customerID, InstallmentID: env.node.Generate(), Amount: d("100"),
	})
	assert.ErrorIs(t, err, domain.ErrInstallmentNotFound)

	// The installment belongs to another customer's contract.
	env.deposit(t, otherCustomerID, "500")
	_, err = env.svc.ApplyToInstallment(ctx, domain.ApplyRequest{
		CustomerID: otherCustomerID, InstallmentID: installmentID, Amount: d("100"),
	})
	assert.ErrorIs(t, err, domain.ErrInstallmentMismatch)

	// No balance to draw from.
	_, err = env.svc.ApplyToInstallment(ctx, domain.ApplyRequest{
		CustomerID: customerID, InstallmentID: installmentID, Amount: d("100"),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestHistoryPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.addCustomer(t)

	for i := 0; i < 5; i++ {
		env.deposit(t, customerID, "10")
	}

	first, err := env.svc.History(ctx, customerID, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	assert.True(t, first.Balance.Equal(d("50")), "balance %s", first.Balance)
	require.Len(t, first.Entries, 2)
	assert.True(t, first.PageInfo.HasMore)
	require.NotEmpty(t, first.PageInfo.NextPageToken)

	// Newest first.
	assert.True(t, first.Entries[0].ID > first.Entries[1].ID)

	second, err := env.svc.History(ctx, customerID, pagination.Pagination{
		PageSize:  2,
		PageToken: first.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)
	assert.True(t, second.PageInfo.HasMore)
	assert.True(t, second.Entries[0].ID < first.Entries[1].ID)

	last, err := env.svc.History(ctx, customerID, pagination.Pagination{
		PageSize:  2,
		PageToken: second.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, last.Entries, 1)
	assert.False(t, last.PageInfo.HasMore)
}
