package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/clock"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type contractSvcStub struct {
	marked int64
	err    error
	calls  []time.Time
}

func (s *contractSvcStub) GetContract(ctx context.Context, id snowflake.ID) (contractdomain.Contract, error) {
	return contractdomain.Contract{}, contractdomain.ErrContractNotFound
}

func (s *contractSvcStub) ListContracts(ctx context.Context, filter contractdomain.ContractFilter) ([]contractdomain.Contract, error) {
	return nil, nil
}

func (s *contractSvcStub) ListInstallments(ctx context.Context, filter contractdomain.InstallmentFilter) ([]contractdomain.Installment, error) {
	return nil, nil
}

func (s *contractSvcStub) ListReceipts(ctx context.Context, filter contractdomain.ReceiptFilter) ([]contractdomain.Receipt, error) {
	return nil, nil
}

func (s *contractSvcStub) RecordReceipt(ctx context.Context, req contractdomain.RecordReceiptRequest) (contractdomain.RecordReceiptResult, error) {
	return contractdomain.RecordReceiptResult{}, nil
}

func (s *contractSvcStub) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	s.calls = append(s.calls, asOf)
	return s.marked, s.err
}

func TestNewValidatesDependencies(t *testing.T) {
	stub := &contractSvcStub{}
	clk := clock.NewFakeClock(time.Date(2025, time.June, 15, 3, 0, 0, 0, time.UTC))

	_, err := New(Params{Log: nil, Clock: clk, ContractSvc: stub})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Params{Log: zap.NewNop(), Clock: nil, ContractSvc: stub})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := New(Params{Log: zap.NewNop(), Clock: clk, ContractSvc: stub})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), s.cfg)
}

func TestRunOncePassesClockTime(t *testing.T) {
	stub := &contractSvcStub{marked: 3}
	now := time.Date(2025, time.June, 15, 3, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)

	s, err := New(Params{Log: zap.NewNop(), Clock: clk, ContractSvc: stub})
	require.NoError(t, err)

	s.RunOnce(context.Background())
	require.Len(t, stub.calls, 1)
	assert.Equal(t, now, stub.calls[0])

	clk.Advance(24 * time.Hour)
	s.RunOnce(context.Background())
	require.Len(t, stub.calls, 2)
	assert.Equal(t, now.Add(24*time.Hour), stub.calls[1])
}

func TestRunOnceSurvivesJobError(t *testing.T) {
	stub := &contractSvcStub{err: errors.New("db down")}
	clk := clock.NewFakeClock(time.Date(2025, time.June, 15, 3, 0, 0, 0, time.UTC))

	s, err := New(Params{Log: zap.NewNop(), Clock: clk, ContractSvc: stub})
	require.NoError(t, err)

	// The job logs and returns; the scheduler itself never fails.
	s.RunOnce(context.Background())
	require.Len(t, stub.calls, 1)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)

	custom := Config{RunInterval: time.Minute, JobTimeout: time.Second}.withDefaults()
	assert.Equal(t, time.Minute, custom.RunInterval)
	assert.Equal(t, time.Second, custom.JobTimeout)
}
