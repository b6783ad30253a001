package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/currency/domain"
	"github.com/smallbiznis/backoffice/internal/currency/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Currency{}, &domain.Rate{}))
	return db
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  mustNode(t),
		Repo:   repository.Provide(),
		Engine: config.NewStaticEngineConfigHolder(config.DefaultEngineConfig()),
	})
	return svc, db
}

func seedCurrency(t *testing.T, svc domain.Service, code string, fixed string) {
	t.Helper()

	_, err := svc.UpsertCurrency(context.Background(), domain.UpsertCurrencyRequest{
		Code:      code,
		Name:      code,
		FixedRate: decimal.NewNullDecimal(decimal.RequireFromString(fixed)),
	})
	require.NoError(t, err)
}

func TestConvertIdentity(t *testing.T) {
	svc, _ := newTestService(t)

	amount := decimal.RequireFromString("123.45")
	got, err := svc.Convert(context.Background(), domain.ConvertRequest{
		Amount: amount,
		From:   "USD",
		To:     "usd",
		Mode:   domain.RateModeFixed,
	})
	assert.NoError(t, err)
	assert.True(t, got.Equal(amount))
}

func TestConvertPivotsThroughBase(t *testing.T) {
	svc, _ := newTestService(t)

	// Base is CNY: 1 CNY = 0.14 USD and 1 CNY = 20 JPY.
	seedCurrency(t, svc, "USD", "0.14")
	seedCurrency(t, svc, "JPY", "20")

	got, err := svc.Convert(context.Background(), domain.ConvertRequest{
		Amount: decimal.RequireFromString("7"),
		From:   "USD",
		To:     "CNY",
		Mode:   domain.RateModeFixed,
	})
	assert.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(50)), "got %s", got)

	got, err = svc.Convert(context.Background(), domain.ConvertRequest{
		Amount: decimal.RequireFromString("0.14"),
		From:   "USD",
		To:     "JPY",
		Mode:   domain.RateModeFixed,
	})
	assert.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(20)), "got %s", got)
}

func TestConvertValidation(t *testing.T) {
	svc, _ := newTestService(t)
	seedCurrency(t, svc, "USD", "0.14")

	_, err := svc.Convert(context.Background(), domain.ConvertRequest{
		Amount: decimal.NewFromInt(1),
		From:   "USD",
		To:     "CNY",
		Mode:   "spot",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRateMode)

	_, err = svc.Convert(context.Background(), domain.ConvertRequest{
		Amount: decimal.NewFromInt(-1),
		From:   "USD",
		To:     "CNY",
		Mode:   domain.RateModeFixed,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Convert(context.Background(), domain.ConvertRequest{
		Amount: decimal.NewFromInt(1),
		From:   "EUR",
		To:     "CNY",
		Mode:   domain.RateModeFixed,
	})
	assert.ErrorIs(t, err, domain.ErrUnknownCurrency)
}

func TestConvertMissingRateFails(t *testing.T) {
	svc, _ := newTestService(t)

	// USD exists but carries no floating quote yet.
	seedCurrency(t, svc, "USD", "0.14")

	_, err := svc.Convert(context.Background(), domain.ConvertRequest{
		Amount: decimal.NewFromInt(10),
		From:   "USD",
		To:     "CNY",
		Mode:   domain.RateModeFloating,
	})
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestConvertFloatingAsOf(t *testing.T) {
	svc, _ := newTestService(t)
	seedCurrency(t, svc, "USD", "0.14")

	day := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	n, err := svc.SyncFloatingRates(context.Background(), []domain.UpsertRateRequest{
		{Code: "USD", RateDate: day, Value: decimal.RequireFromString("0.2")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.Convert(context.Background(), domain.ConvertRequest{
		Amount: decimal.NewFromInt(10),
		From:   "USD",
		To:     "CNY",
		Mode:   domain.RateModeFloating,
		AsOf:   day,
	})
	assert.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(50)), "got %s", got)

	// No quote recorded for the day before; there is no fallback.
	_, err = svc.Convert(context.Background(), domain.ConvertRequest{
		Amount: decimal.NewFromInt(10),
		From:   "USD",
		To:     "CNY",
		Mode:   domain.RateModeFloating,
		AsOf:   day.AddDate(0, 0, -1),
	})
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestSyncFloatingRatesUpdatesSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	seedCurrency(t, svc, "USD", "0.14")

	day := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.SyncFloatingRates(context.Background(), []domain.UpsertRateRequest{
		{Code: "USD", RateDate: day, Value: decimal.RequireFromString("0.2")},
	})
	require.NoError(t, err)

	// Re-sync for the same day replaces the quote instead of duplicating it.
	_, err = svc.SyncFloatingRates(context.Background(), []domain.UpsertRateRequest{
		{Code: "USD", RateDate: day, Value: decimal.RequireFromString("0.25")},
	})
	require.NoError(t, err)

	// Floating convert without AsOf reads the snapshot.
	got, err := svc.Convert(context.Background(), domain.ConvertRequest{
		Amount: decimal.NewFromInt(1),
		From:   "CNY",
		To:     "USD",
		Mode:   domain.RateModeFloating,
	})
	assert.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("0.25")), "got %s", got)

	_, err = svc.SyncFloatingRates(context.Background(), []domain.UpsertRateRequest{
		{Code: "USD", RateDate: day, Value: decimal.Zero},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
}

func TestConvertWithContractRate(t *testing.T) {
	svc, _ := newTestService(t)
	seedCurrency(t, svc, "USD", "0.14")

	// The contract froze 1 CNY = 0.12 USD at signing.
	got, err := svc.ConvertWithContractRate(context.Background(),
		decimal.RequireFromString("12"), "USD", "CNY", decimal.RequireFromString("0.12"))
	assert.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(100)), "got %s", got)

	_, err = svc.ConvertWithContractRate(context.Background(),
		decimal.NewFromInt(1), "USD", "CNY", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestUpsertCurrencyValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpsertCurrency(context.Background(), domain.UpsertCurrencyRequest{
		Code:      "USD",
		FixedRate: decimal.NewNullDecimal(decimal.NewFromInt(-1)),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)

	_, err = svc.UpsertCurrency(context.Background(), domain.UpsertCurrencyRequest{Code: "  "})
	assert.ErrorIs(t, err, domain.ErrUnknownCurrency)

	seedCurrency(t, svc, "usd", "0.14")
	list, err := svc.ListCurrencies(context.Background())
	assert.NoError(t, err)
	if assert.Len(t, list, 1) {
		assert.Equal(t, "USD", list[0].Code)
	}
}
