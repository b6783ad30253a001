package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/commission/domain"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
	directorydomain "github.com/smallbiznis/backoffice/internal/directory/domain"
	"github.com/smallbiznis/backoffice/pkg/period"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const batchWorkers = 4

// installmentReceipt is a period receipt that pays down a contract
// locked in an earlier period.
type installmentReceipt struct {
	receipt    contractdomain.Receipt
	contract   *contractdomain.Contract
	amountRule decimal.Decimal
	firstPaid  period.Period
	ownerID    snowflake.ID
}

// newOrderBase is the outcome of walking one user's period receipts.
type newOrderBase struct {
	base           decimal.Decimal
	prepayDeposits decimal.Decimal
	firstContracts []*contractdomain.Contract
	newOrderCount  int
	installments   []installmentReceipt
}

func (s *Service) Calculate(ctx context.Context, req domain.CalculateRequest) (domain.PayoutRecord, error) {
	start := time.Now()
	payout, err := s.calculate(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordCalculation(outcome, time.Since(start))
	return payout, err
}

func (s *Service) calculate(ctx context.Context, req domain.CalculateRequest) (domain.PayoutRecord, error) {
	p, err := period.Parse(req.Period)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	engine := s.engine.Current()
	ctx, cancel := context.WithTimeout(ctx, engine.CalculationTimeout)
	defer cancel()

	mode := req.RateMode
	if mode == "" {
		mode = currencydomain.RateModeFixed
	}
	if !mode.Valid() {
		return domain.PayoutRecord{}, currencydomain.ErrInvalidRateMode
	}
	displayCurrency := strings.ToUpper(strings.TrimSpace(req.DisplayCurrency))
	if displayCurrency == "" {
		displayCurrency = strings.ToUpper(engine.DisplayCurrency)
	}

	user, err := s.directory.GetUser(ctx, req.UserID)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	rule, err := s.Resolve(ctx, user.ID, user.DepartmentID, p.End())
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	collected, err := s.collectPeriod(ctx, s.db, rule, user.ID, p)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	tierBase := collected.base.Add(collected.prepayDeposits)
	newOrderCommission, tierRate, err := s.commissionForBase(rule, tierBase)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	var payout domain.PayoutRecord
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Freeze the bracket for every contract that entered the book
		// this period. An existing lock wins; the first calculation of
		// a period is authoritative.
		for _, contract := range collected.firstContracts {
			lock := domain.TierLock{
				ID:         s.genID.Generate(),
				ContractID: contract.ID,
				Period:     p.String(),
				TierBase:   tierBase,
				TierRate:   tierRate,
				CreatedAt:  s.clock.Now(),
			}
			if _, err := s.repo.InsertTierLock(ctx, tx, &lock); err != nil {
				return err
			}
		}

		installmentCommission := decimal.Zero
		for _, item := range collected.installments {
			lock, err := s.lockForContract(ctx, tx, rule, item)
			if err != nil {
				return err
			}
			installmentCommission = installmentCommission.Add(item.amountRule.Mul(lock.TierRate))
		}

		total := newOrderCommission.Add(installmentCommission)
		displayAmount, err := s.currency.Convert(ctx, currencydomain.ConvertRequest{
			Amount: total,
			From:   rule.Currency,
			To:     displayCurrency,
			Mode:   mode,
		})
		if err != nil {
			return err
		}

		payout = domain.PayoutRecord{
			ID:                    s.genID.Generate(),
			UserID:                user.ID,
			Period:                p.String(),
			RuleID:                rule.ID,
			TierBase:              tierBase,
			TierRate:              tierRate,
			NewOrderCommission:    newOrderCommission,
			InstallmentCommission: installmentCommission,
			Currency:              rule.Currency,
			DisplayCurrency:       displayCurrency,
			DisplayAmount:         displayAmount.Round(engine.RoundingPlaces),
			RateMode:              string(mode),
			Detail: datatypes.JSONMap{
				"new_order_receipts":   collected.newOrderCount,
				"installment_receipts": len(collected.installments),
				"prepay_deposits":      collected.prepayDeposits.String(),
				"include_prepay":       rule.IncludePrepay,
			},
			CreatedAt: s.clock.Now(),
			UpdatedAt: s.clock.Now(),
		}
		return s.repo.UpsertPayout(ctx, tx, &payout)
	})
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	s.log.Info("commission calculated",
		zap.Int64("user_id", int64(user.ID)),
		zap.String("period", p.String()),
		zap.String("tier_base", payout.TierBase.String()),
		zap.String("total", payout.Total().String()),
	)
	return payout, nil
}

// collectPeriod gathers the user's period receipts and splits them into
// the new-order base and installment receipts of earlier contracts.
func (s *Service) collectPeriod(ctx context.Context, db *gorm.DB, rule domain.Rule, userID snowflake.ID, p period.Period) (newOrderBase, error) {
	out := newOrderBase{
		base:           decimal.Zero,
		prepayDeposits: decimal.Zero,
	}

	receipts, err := s.contracts.ListReceipts(ctx, db, contractdomain.ReceiptFilter{
		OwnerUserID: userID,
		From:        p.Start(),
		To:          p.End(),
	})
	if err != nil {
		return newOrderBase{}, err
	}

	contractCache := make(map[snowflake.ID]*contractdomain.Contract)
	firstPaidCache := make(map[snowflake.ID]period.Period)
	seenFirst := make(map[snowflake.ID]bool)

	for _, receipt := range receipts {
		if receipt == nil {
			continue
		}
		// With include_prepay the money was recognized when it entered
		// the ledger; counting the application too would pay twice.
		if rule.IncludePrepay && receipt.SourceType == contractdomain.ReceiptSourcePrepayApply {
			continue
		}
		amount := receipt.Amount()
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}

		contract, ok := contractCache[receipt.ContractID]
		if !ok {
			contract, err = s.contracts.FindContract(ctx, db, receipt.ContractID)
			if err != nil {
				return newOrderBase{}, err
			}
			contractCache[receipt.ContractID] = contract
		}
		if contract == nil {
			continue
		}

		firstPaid, ok := firstPaidCache[contract.ID]
		if !ok {
			firstDate, err := s.contracts.FirstPaymentDate(ctx, db, contract.ID)
			if err != nil {
				return newOrderBase{}, err
			}
			if firstDate == nil {
				continue
			}
			firstPaid = period.FromTime(*firstDate)
			firstPaidCache[contract.ID] = firstPaid
		}

		converted, err := s.toRuleCurrency(ctx, rule, amount, receipt.Currency, contract)
		if err != nil {
			return newOrderBase{}, err
		}

		if contract.IsFirst && firstPaid == p {
			out.base = out.base.Add(converted)
			out.newOrderCount++
			if !seenFirst[contract.ID] {
				seenFirst[contract.ID] = true
				out.firstContracts = append(out.firstContracts, contract)
			}
			continue
		}
		out.installments = append(out.installments, installmentReceipt{
			receipt:    *receipt,
			contract:   contract,
			amountRule: converted,
			firstPaid:  firstPaid,
			ownerID:    userID,
		})
	}

	if rule.IncludePrepay {
		customerIDs, err := s.repo.ListOwnedCustomerIDs(ctx, db, userID)
		if err != nil {
			return newOrderBase{}, err
		}
		deposits, err := s.prepay.SumDeposits(ctx, db, customerIDs, p.Start(), p.End())
		if err != nil {
			return newOrderBase{}, err
		}
		if deposits.GreaterThan(decimal.Zero) {
			converted, err := s.currency.Convert(ctx, currencydomain.ConvertRequest{
				Amount: deposits,
				From:   s.engine.Current().BaseCurrency,
				To:     rule.Currency,
				Mode:   currencydomain.RateModeFixed,
			})
			if err != nil {
				return newOrderBase{}, err
			}
			out.prepayDeposits = converted
		}
	}

	return out, nil
}

// lockForContract returns the contract's frozen bracket, creating it
// from the contract's first-paid period when no lock exists yet.
func (s *Service) lockForContract(ctx context.Context, tx *gorm.DB, rule domain.Rule, item installmentReceipt) (*domain.TierLock, error) {
	lock, err := s.repo.FindTierLock(ctx, tx, item.contract.ID)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		return lock, nil
	}

	collected, err := s.collectPeriod(ctx, tx, rule, item.ownerID, item.firstPaid)
	if err != nil {
		return nil, err
	}
	base := collected.base.Add(collected.prepayDeposits)
	_, rate, err := s.commissionForBase(rule, base)
	if err != nil {
		return nil, err
	}

	return s.repo.InsertTierLock(ctx, tx, &domain.TierLock{
		ID:         s.genID.Generate(),
		ContractID: item.contract.ID,
		Period:     item.firstPaid.String(),
		TierBase:   base,
		TierRate:   rate,
		CreatedAt:  s.clock.Now(),
	})
}

// commissionForBase computes the new-order commission and the blended
// rate for one tier base.
func (s *Service) commissionForBase(rule domain.Rule, base decimal.Decimal) (commission, rate decimal.Decimal, err error) {
	switch rule.RuleType {
	case domain.RuleTypeFixed:
		if !rule.FixedRate.Valid {
			return decimal.Zero, decimal.Zero, domain.ErrInvalidRate
		}
		rate = rule.FixedRate.Decimal
		return base.Mul(rate), rate, nil
	case domain.RuleTypeTiered:
		commission, err = progressiveCommission(rule.Tiers, base)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		if base.IsZero() {
			if len(rule.Tiers) == 0 {
				return decimal.Zero, decimal.Zero, domain.ErrInvalidTierTable
			}
			return decimal.Zero, rule.Tiers[0].Rate, nil
		}
		return commission, commission.Div(base), nil
	default:
		return decimal.Zero, decimal.Zero, domain.ErrInvalidRuleType
	}
}

// progressiveCommission walks the tier table cumulatively: each slice
// of the base pays at its own tier's rate.
func progressiveCommission(tiers []domain.Tier, base decimal.Decimal) (decimal.Decimal, error) {
	if len(tiers) == 0 {
		return decimal.Zero, domain.ErrInvalidTierTable
	}

	commission := decimal.Zero
	covered := decimal.Zero
	for _, tier := range tiers {
		if !tier.FromAmount.Equal(covered) {
			return decimal.Zero, domain.ErrTierTableGap
		}
		upper := base
		if tier.ToAmount.Valid && tier.ToAmount.Decimal.LessThan(base) {
			upper = tier.ToAmount.Decimal
		}
		if upper.GreaterThan(tier.FromAmount) {
			commission = commission.Add(upper.Sub(tier.FromAmount).Mul(tier.Rate))
		}
		if !tier.ToAmount.Valid {
			return commission, nil
		}
		covered = tier.ToAmount.Decimal
		if covered.GreaterThanOrEqual(base) {
			return commission, nil
		}
	}
	return decimal.Zero, domain.ErrTierTableGap
}

// toRuleCurrency converts a receipt amount into the rule currency. A
// contract carrying a signing-rate snapshot converts at that rate so a
// later rate move never changes an installment's commission.
func (s *Service) toRuleCurrency(ctx context.Context, rule domain.Rule, amount decimal.Decimal, fromCurrency string, contract *contractdomain.Contract) (decimal.Decimal, error) {
	if contract != nil && contract.FixedRateSnapshot.Valid && contract.FixedRateSnapshot.Decimal.GreaterThan(decimal.Zero) {
		return s.currency.ConvertWithContractRate(ctx, amount, fromCurrency, rule.Currency, contract.FixedRateSnapshot.Decimal)
	}
	return s.currency.Convert(ctx, currencydomain.ConvertRequest{
		Amount: amount,
		From:   fromCurrency,
		To:     rule.Currency,
		Mode:   currencydomain.RateModeFixed,
	})
}

func (s *Service) CalculateAll(ctx context.Context, periodStr string, departmentID snowflake.ID, displayCurrency string, mode currencydomain.RateMode) (domain.BatchResult, error) {
	if _, err := period.Parse(periodStr); err != nil {
		return domain.BatchResult{}, err
	}

	users, err := s.directory.ListActiveUsers(ctx, directorydomain.UserFilter{DepartmentID: departmentID})
	if err != nil {
		return domain.BatchResult{}, err
	}

	result := domain.BatchResult{
		Period: periodStr,
		Items:  make([]domain.BatchItem, len(users)),
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, batchWorkers)
	for i, user := range users {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, userID snowflake.ID) {
			defer wg.Done()
			defer func() { <-sem }()

			payout, err := s.Calculate(ctx, domain.CalculateRequest{
				UserID:          userID,
				Period:          periodStr,
				DisplayCurrency: displayCurrency,
				RateMode:        mode,
			})
			if err != nil {
				result.Items[i] = domain.BatchItem{UserID: userID, Err: err.Error()}
				return
			}
			result.Items[i] = domain.BatchItem{UserID: userID, Payout: &payout}
		}(i, user.ID)
	}
	wg.Wait()

	for _, item := range result.Items {
		if item.Err != "" {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}
	return result, nil
}
