package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/currency/domain"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Engine  *config.EngineConfigHolder
	Metrics *metrics.EngineMetrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	engine  *config.EngineConfigHolder
	metrics *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("currency.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		engine:  p.Engine,
		metrics: p.Metrics,
	}
}

func (s *Service) Convert(ctx context.Context, req domain.ConvertRequest) (decimal.Decimal, error) {
	from := strings.ToUpper(strings.TrimSpace(req.From))
	to := strings.ToUpper(strings.TrimSpace(req.To))
	if from == "" || to == "" {
		return decimal.Zero, domain.ErrUnknownCurrency
	}
	if !req.Mode.Valid() {
		return decimal.Zero, domain.ErrInvalidRateMode
	}
	if req.Amount.IsNegative() {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	if from == to {
		return req.Amount, nil
	}

	fromRate, err := s.lookupRate(ctx, from, req.Mode, req.AsOf)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := s.lookupRate(ctx, to, req.Mode, req.AsOf)
	if err != nil {
		return decimal.Zero, err
	}

	s.metrics.RecordConversion(string(req.Mode))

	// Pivot through the base currency: amount / rate(from) gives the base
	// amount, times rate(to) gives the target amount.
	return req.Amount.Div(fromRate).Mul(toRate), nil
}

func (s *Service) ConvertWithContractRate(ctx context.Context, amount decimal.Decimal, from, to string, contractRate decimal.Decimal) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return decimal.Zero, domain.ErrUnknownCurrency
	}
	if from == to {
		return amount, nil
	}
	if contractRate.IsZero() || contractRate.IsNegative() {
		return decimal.Zero, domain.ErrRateNotFound
	}

	toRate, err := s.lookupRate(ctx, to, domain.RateModeFixed, time.Time{})
	if err != nil {
		return decimal.Zero, err
	}

	s.metrics.RecordConversion(string(domain.RateModeFixed))

	return amount.Div(contractRate).Mul(toRate), nil
}

// lookupRate returns the base-currency quote for code. The base currency is
// always 1; fixed mode reads the configured fixed rate, floating mode the
// quote recorded for the asOf date.
func (s *Service) lookupRate(ctx context.Context, code string, mode domain.RateMode, asOf time.Time) (decimal.Decimal, error) {
	if code == strings.ToUpper(s.engine.Current().BaseCurrency) {
		return decimal.NewFromInt(1), nil
	}

	currency, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return decimal.Zero, err
	}
	if currency == nil || currency.Status != domain.StatusEnabled {
		return decimal.Zero, domain.ErrUnknownCurrency
	}

	switch mode {
	case domain.RateModeFixed:
		if !currency.FixedRate.Valid || currency.FixedRate.Decimal.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, domain.ErrRateNotFound
		}
		return currency.FixedRate.Decimal, nil
	case domain.RateModeFloating:
		if asOf.IsZero() {
			if !currency.FloatingRate.Valid || currency.FloatingRate.Decimal.LessThanOrEqual(decimal.Zero) {
				return decimal.Zero, domain.ErrRateNotFound
			}
			return currency.FloatingRate.Decimal, nil
		}
		rate, err := s.repo.FindRate(ctx, s.db, code, asOf)
		if err != nil {
			return decimal.Zero, err
		}
		if rate == nil || rate.Value.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, domain.ErrRateNotFound
		}
		return rate.Value, nil
	default:
		return decimal.Zero, domain.ErrInvalidRateMode
	}
}

func (s *Service) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	items, err := s.repo.ListEnabled(ctx, s.db)
	if err != nil {
		return nil, err
	}

	currencies := make([]domain.Currency, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		currencies = append(currencies, *item)
	}
	return currencies, nil
}

func (s *Service) UpsertCurrency(ctx context.Context, req domain.UpsertCurrencyRequest) (domain.Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return domain.Currency{}, domain.ErrUnknownCurrency
	}
	if req.FixedRate.Valid && req.FixedRate.Decimal.LessThanOrEqual(decimal.Zero) {
		return domain.Currency{}, domain.ErrInvalidRate
	}
	if req.FloatingRate.Valid && req.FloatingRate.Decimal.LessThanOrEqual(decimal.Zero) {
		return domain.Currency{}, domain.ErrInvalidRate
	}

	currency := domain.Currency{
		Code:         code,
		Name:         strings.TrimSpace(req.Name),
		FixedRate:    req.FixedRate,
		FloatingRate: req.FloatingRate,
		Status:       domain.StatusEnabled,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, s.db, &currency); err != nil {
		return domain.Currency{}, err
	}
	return currency, nil
}

func (s *Service) SyncFloatingRates(ctx context.Context, rates []domain.UpsertRateRequest) (int, error) {
	now := time.Now().UTC()

	synced := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, req := range rates {
			code := strings.ToUpper(strings.TrimSpace(req.Code))
			if code == "" {
				return domain.ErrUnknownCurrency
			}
			if req.Value.LessThanOrEqual(decimal.Zero) {
				return domain.ErrInvalidRate
			}
			if req.RateDate.IsZero() {
				return domain.ErrInvalidRate
			}

			rate := domain.Rate{
				ID:        s.genID.Generate(),
				Code:      code,
				RateDate:  req.RateDate,
				Value:     req.Value,
				CreatedAt: now,
			}
			if err := s.repo.UpsertRate(ctx, tx, &rate); err != nil {
				return err
			}
			if err := s.repo.UpdateFloatingSnapshot(ctx, tx, code, rate); err != nil {
				return err
			}
			synced++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("floating rates synced", zap.Int("count", synced))
	return synced, nil
}
