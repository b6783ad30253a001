package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/contract/domain"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	prepaydomain "github.com/smallbiznis/backoffice/internal/prepay/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Ledger  prepaydomain.Repository
	Metrics *metrics.EngineMetrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	ledger  prepaydomain.Repository
	metrics *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("contract.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		ledger:  p.Ledger,
		metrics: p.Metrics,
	}
}

func (s *Service) GetContract(ctx context.Context, id snowflake.ID) (domain.Contract, error) {
	contract, err := s.repo.FindContract(ctx, s.db, id)
	if err != nil {
		return domain.Contract{}, err
	}
	if contract == nil {
		return domain.Contract{}, domain.ErrContractNotFound
	}
	return *contract, nil
}

func (s *Service) ListContracts(ctx context.Context, filter domain.ContractFilter) ([]domain.Contract, error) {
	items, err := s.repo.ListContracts(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	contracts := make([]domain.Contract, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		contracts = append(contracts, *item)
	}
	return contracts, nil
}

func (s *Service) ListInstallments(ctx context.Context, filter domain.InstallmentFilter) ([]domain.Installment, error) {
	items, err := s.repo.ListInstallments(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	installments := make([]domain.Installment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		installments = append(installments, *item)
	}
	return installments, nil
}

func (s *Service) ListReceipts(ctx context.Context, filter domain.ReceiptFilter) ([]domain.Receipt, error) {
	items, err := s.repo.ListReceipts(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	receipts := make([]domain.Receipt, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		receipts = append(receipts, *item)
	}
	return receipts, nil
}

func (s *Service) RecordReceipt(ctx context.Context, req domain.RecordReceiptRequest) (domain.RecordReceiptResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return domain.RecordReceiptResult{}, domain.ErrInvalidAmount
	}
	receivedDate := req.ReceivedDate
	if receivedDate.IsZero() {
		receivedDate = s.clock.Now()
	}

	var result domain.RecordReceiptResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		installment, err := s.repo.FindInstallmentForUpdate(ctx, tx, req.InstallmentID)
		if err != nil {
			return err
		}
		if installment == nil {
			return domain.ErrInstallmentNotFound
		}

		contract, err := s.repo.FindContract(ctx, tx, installment.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrContractNotFound
		}

		remaining := installment.Remaining()
		if remaining.LessThanOrEqual(decimal.Zero) {
			return domain.ErrInstallmentSettled
		}

		applied := req.Amount
		overflow := decimal.Zero
		if applied.GreaterThan(remaining) {
			if !req.RouteOverflowToPrepay {
				return domain.ErrReceiptOverflow
			}
			applied = remaining
			overflow = req.Amount.Sub(remaining)
		}

		receipt := domain.Receipt{
			ID:                  s.genID.Generate(),
			CustomerID:          installment.CustomerID,
			ContractID:          installment.ContractID,
			InstallmentID:       installment.ID,
			SalesUserIDSnapshot: contract.SalesUserID,
			SourceType:          domain.ReceiptSourceCash,
			ReceivedDate:        receivedDate,
			AmountReceived:      req.Amount,
			AmountApplied:       applied,
			Currency:            contract.Currency,
			Method:              req.Method,
			Note:                req.Note,
			CreatedAt:           s.clock.Now(),
		}
		if err := s.repo.InsertReceipt(ctx, tx, &receipt); err != nil {
			return err
		}

		newPaid := installment.AmountPaid.Add(applied)
		status := domain.InstallmentStatusPartial
		if newPaid.GreaterThanOrEqual(installment.AmountDue) {
			status = domain.InstallmentStatusPaid
		}
		if err := s.repo.UpdateInstallmentPayment(ctx, tx, installment.ID, newPaid, status); err != nil {
			return err
		}
		installment.AmountPaid = newPaid
		installment.Status = status

		contractStatus := contract.Status
		if status == domain.InstallmentStatusPaid && contract.Status == domain.ContractStatusActive {
			unpaid, err := s.repo.CountUnpaidInstallments(ctx, tx, contract.ID)
			if err != nil {
				return err
			}
			if unpaid == 0 {
				if err := s.repo.UpdateContractStatus(ctx, tx, contract.ID, domain.ContractStatusClosed); err != nil {
					return err
				}
				contractStatus = domain.ContractStatusClosed
			}
		}

		result = domain.RecordReceiptResult{
			Receipt:          receipt,
			Installment:      *installment,
			ContractStatus:   contractStatus,
			OverflowToPrepay: overflow,
		}

		if overflow.IsZero() {
			return nil
		}

		found, err := s.ledger.LockCustomerLedger(ctx, tx, installment.CustomerID)
		if err != nil {
			return err
		}
		if !found {
			return prepaydomain.ErrCustomerNotFound
		}
		entry := prepaydomain.LedgerEntry{
			ID:         s.genID.Generate(),
			CustomerID: installment.CustomerID,
			Direction:  prepaydomain.DirectionIn,
			Amount:     overflow,
			SourceType: prepaydomain.SourceReceipt,
			SourceID:   receipt.ID,
			Method:     req.Method,
			Note:       "receipt overflow",
			CreatedAt:  s.clock.Now(),
		}
		if err := s.ledger.Insert(ctx, tx, &entry); err != nil {
			return err
		}
		s.metrics.RecordLedgerEntry(entry.Direction, entry.SourceType)
		result.PrepayLedgerEntry = entry.ID
		return nil
	})
	if err != nil {
		return domain.RecordReceiptResult{}, err
	}

	s.log.Info("receipt recorded",
		zap.Int64("installment_id", int64(req.InstallmentID)),
		zap.String("amount", req.Amount.String()),
		zap.String("overflow", result.OverflowToPrepay.String()),
	)
	return result, nil
}

func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	return s.repo.MarkOverdue(ctx, s.db, asOf)
}
