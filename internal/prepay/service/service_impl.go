package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"github.com/smallbiznis/backoffice/internal/prepay/domain"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Contracts contractdomain.Repository
	Metrics   *metrics.EngineMetrics
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	contracts contractdomain.Repository
	metrics   *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("prepay.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		contracts: p.Contracts,
		metrics:   p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (domain.LedgerEntry, error) {
	if req.Direction != domain.DirectionIn && req.Direction != domain.DirectionOut {
		return domain.LedgerEntry{}, domain.ErrInvalidDirection
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}

	var entry domain.LedgerEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.LockCustomerLedger(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrCustomerNotFound
		}

		if req.Direction == domain.DirectionOut {
			balance, err := s.repo.SumBalance(ctx, tx, req.CustomerID)
			if err != nil {
				return err
			}
			if balance.LessThan(req.Amount) {
				return domain.ErrInsufficientBalance
			}
		}

		entry = domain.LedgerEntry{
			ID:         s.genID.Generate(),
			CustomerID: req.CustomerID,
			Direction:  req.Direction,
			Amount:     req.Amount,
			SourceType: req.SourceType,
			SourceID:   req.SourceID,
			Method:     req.Method,
			Note:       req.Note,
			CreatedAt:  s.clock.Now(),
			CreatedBy:  req.CreatedBy,
		}
		return s.repo.Insert(ctx, tx, &entry)
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	s.metrics.RecordLedgerEntry(entry.Direction, entry.SourceType)
	return entry, nil
}

func (s *Service) Balance(ctx context.Context, customerID snowflake.ID) (decimal.Decimal, error) {
	return s.repo.SumBalance(ctx, s.db, customerID)
}

func (s *Service) ApplyToInstallment(ctx context.Context, req domain.ApplyRequest) (domain.ApplyResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return domain.ApplyResult{}, domain.ErrInvalidAmount
	}
	appliedDate := req.AppliedDate
	if appliedDate.IsZero() {
		appliedDate = s.clock.Now()
	}

	var result domain.ApplyResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.LockCustomerLedger(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrCustomerNotFound
		}

		installment, err := s.contracts.FindInstallmentForUpdate(ctx, tx, req.InstallmentID)
		if err != nil {
			return err
		}
		if installment == nil {
			return domain.ErrInstallmentNotFound
		}
		if installment.CustomerID != req.CustomerID {
			return domain.ErrInstallmentMismatch
		}

		remaining := installment.Remaining()
		if req.Amount.GreaterThan(remaining) {
			return domain.ErrInsufficientInstallmentRemaining
		}

		balance, err := s.repo.SumBalance(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if balance.LessThan(req.Amount) {
			return domain.ErrInsufficientBalance
		}

		contract, err := s.contracts.FindContract(ctx, tx, installment.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrInstallmentNotFound
		}

		entry := domain.LedgerEntry{
			ID:         s.genID.Generate(),
			CustomerID: req.CustomerID,
			Direction:  domain.DirectionOut,
			Amount:     req.Amount,
			SourceType: domain.SourceApplyToInstallment,
			SourceID:   installment.ID,
			Note:       req.Note,
			CreatedAt:  s.clock.Now(),
			CreatedBy:  req.CreatedBy,
		}
		if err := s.repo.Insert(ctx, tx, &entry); err != nil {
			return err
		}

		// The prepay application shows up as a receipt so downstream
		// reporting sees the money land, but amount_received stays zero:
		// the cash was already recognized when it was deposited.
		receipt := contractdomain.Receipt{
			ID:                  s.genID.Generate(),
			CustomerID:          req.CustomerID,
			ContractID:          installment.ContractID,
			InstallmentID:       installment.ID,
			SalesUserIDSnapshot: contract.SalesUserID,
			SourceType:          contractdomain.ReceiptSourcePrepayApply,
			SourceID:            entry.ID,
			ReceivedDate:        appliedDate,
			AmountReceived:      decimal.Zero,
			AmountApplied:       req.Amount,
			Currency:            contract.Currency,
			Note:                req.Note,
			CreatedAt:           s.clock.Now(),
		}
		if err := s.contracts.InsertReceipt(ctx, tx, &receipt); err != nil {
			return err
		}

		newPaid := installment.AmountPaid.Add(req.Amount)
		status := contractdomain.InstallmentStatusPartial
		if newPaid.GreaterThanOrEqual(installment.AmountDue) {
			status = contractdomain.InstallmentStatusPaid
		}
		if err := s.contracts.UpdateInstallmentPayment(ctx, tx, installment.ID, newPaid, status); err != nil {
			return err
		}
		installment.AmountPaid = newPaid
		installment.Status = status

		contractStatus := contract.Status
		if status == contractdomain.InstallmentStatusPaid && contract.Status == contractdomain.ContractStatusActive {
			unpaid, err := s.contracts.CountUnpaidInstallments(ctx, tx, contract.ID)
			if err != nil {
				return err
			}
			if unpaid == 0 {
				if err := s.contracts.UpdateContractStatus(ctx, tx, contract.ID, contractdomain.ContractStatusClosed); err != nil {
					return err
				}
				contractStatus = contractdomain.ContractStatusClosed
			}
		}

		result = domain.ApplyResult{
			Entry:          entry,
			Receipt:        receipt,
			Installment:    *installment,
			ContractStatus: contractStatus,
			BalanceBefore:  balance,
			BalanceAfter:   balance.Sub(req.Amount),
		}
		return nil
	})
	if err != nil {
		return domain.ApplyResult{}, err
	}

	s.metrics.RecordLedgerEntry(result.Entry.Direction, result.Entry.SourceType)
	s.log.Info("prepay applied to installment",
		zap.Int64("customer_id", int64(req.CustomerID)),
		zap.Int64("installment_id", int64(req.InstallmentID)),
		zap.String("amount", req.Amount.String()),
		zap.String("balance_after", result.BalanceAfter.String()),
	)
	return result, nil
}

func (s *Service) ManualAdjust(ctx context.Context, req domain.AdjustRequest) (domain.LedgerEntry, error) {
	note := req.Note
	if req.Method != "" {
		if note != "" {
			note = note + " "
		}
		note = note + "(" + strings.TrimSpace(req.Method) + ")"
	}
	return s.Record(ctx, domain.RecordRequest{
		CustomerID: req.CustomerID,
		Direction:  req.Direction,
		Amount:     req.Amount,
		SourceType: domain.SourceManualAdjust,
		Method:     req.Method,
		Note:       note,
		CreatedBy:  req.CreatedBy,
	})
}

func (s *Service) History(ctx context.Context, customerID snowflake.ID, p pagination.Pagination) (domain.History, error) {
	balance, err := s.repo.SumBalance(ctx, s.db, customerID)
	if err != nil {
		return domain.History{}, err
	}

	items, err := s.repo.List(ctx, s.db, customerID, p)
	if err != nil {
		return domain.History{}, err
	}

	limit := p.PageSize
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	pageInfo := pagination.BuildCursorPageInfo(items, limit, func(e *domain.LedgerEntry) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: e.ID.String()})
		return token
	})

	if len(items) > limit {
		items = items[:limit]
	}
	entries := make([]domain.LedgerEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	return domain.History{
		Balance:  balance,
		Entries:  entries,
		PageInfo: *pageInfo,
	}, nil
}
