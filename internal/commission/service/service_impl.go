package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/commission/domain"
	"github.com/smallbiznis/backoffice/internal/config"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
	directorydomain "github.com/smallbiznis/backoffice/internal/directory/domain"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	prepaydomain "github.com/smallbiznis/backoffice/internal/prepay/domain"
	"github.com/smallbiznis/backoffice/pkg/period"
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
	Engine    *config.EngineConfigHolder
	Repo      domain.Repository
	Contracts contractdomain.Repository
	Prepay    prepaydomain.Repository
	Currency  currencydomain.Service
	Directory directorydomain.Service
	Metrics   *metrics.EngineMetrics
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	engine    *config.EngineConfigHolder
	repo      domain.Repository
	contracts contractdomain.Repository
	prepay    prepaydomain.Repository
	currency  currencydomain.Service
	directory directorydomain.Service
	metrics   *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("commission.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		engine:    p.Engine,
		repo:      p.Repo,
		contracts: p.Contracts,
		prepay:    p.Prepay,
		currency:  p.Currency,
		directory: p.Directory,
		metrics:   p.Metrics,
	}
}

func (s *Service) CreateRule(ctx context.Context, req domain.SaveRuleRequest) (domain.Rule, error) {
	if err := validateRule(req); err != nil {
		return domain.Rule{}, err
	}

	rule := domain.Rule{
		ID:            s.genID.Generate(),
		Name:          strings.TrimSpace(req.Name),
		RuleType:      req.RuleType,
		Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
		FixedRate:     req.FixedRate,
		IncludePrepay: req.IncludePrepay,
		Enabled:       true,
		CreatedAt:     s.clock.Now(),
		UpdatedAt:     s.clock.Now(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertRule(ctx, tx, &rule); err != nil {
			return err
		}
		return s.saveRelations(ctx, tx, &rule, req)
	})
	if err != nil {
		return domain.Rule{}, err
	}

	s.log.Info("commission rule created",
		zap.Int64("rule_id", int64(rule.ID)),
		zap.String("rule_type", rule.RuleType),
	)
	return rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, id snowflake.ID, req domain.SaveRuleRequest) (domain.Rule, error) {
	if err := validateRule(req); err != nil {
		return domain.Rule{}, err
	}

	var rule domain.Rule
	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindRule(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrRuleNotFound
		}

		rule = *existing
		rule.Name = strings.TrimSpace(req.Name)
		rule.RuleType = req.RuleType
		rule.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
		rule.FixedRate = req.FixedRate
		rule.IncludePrepay = req.IncludePrepay
		rule.UpdatedAt = s.clock.Now()
		rule.Tiers = nil
		rule.Scopes = nil
		rule.Components = nil

		if err := s.repo.UpdateRule(ctx, tx, &rule); err != nil {
			return err
		}
		return s.saveRelations(ctx, tx, &rule, req)
	})
	if err != nil {
		return domain.Rule{}, err
	}
	return rule, nil
}

func (s *Service) saveRelations(ctx context.Context, tx *gorm.DB, rule *domain.Rule, req domain.SaveRuleRequest) error {
	tiers := make([]domain.Tier, 0, len(req.Tiers))
	for i, in := range req.Tiers {
		tiers = append(tiers, domain.Tier{
			ID:         s.genID.Generate(),
			RuleID:     rule.ID,
			FromAmount: in.FromAmount,
			ToAmount:   in.ToAmount,
			Rate:       in.Rate,
			SortOrder:  i,
		})
	}
	if err := s.repo.ReplaceTiers(ctx, tx, rule.ID, tiers); err != nil {
		return err
	}
	rule.Tiers = tiers

	scopes := make([]domain.RuleScope, 0, len(req.Scopes))
	for _, in := range req.Scopes {
		scopes = append(scopes, domain.RuleScope{
			ID:       s.genID.Generate(),
			RuleID:   rule.ID,
			Kind:     in.Kind,
			TargetID: in.TargetID,
		})
	}
	if err := s.repo.ReplaceScopes(ctx, tx, rule.ID, scopes); err != nil {
		return err
	}
	rule.Scopes = scopes

	components := make([]domain.SalaryComponent, 0, len(req.Components))
	for i, in := range req.Components {
		sign := in.Sign
		if sign != -1 {
			sign = 1
		}
		components = append(components, domain.SalaryComponent{
			ID:           s.genID.Generate(),
			RuleID:       rule.ID,
			Code:         strings.TrimSpace(in.Code),
			DisplayName:  strings.TrimSpace(in.DisplayName),
			Kind:         in.Kind,
			DefaultValue: in.DefaultValue,
			Currency:     strings.ToUpper(strings.TrimSpace(in.Currency)),
			Sign:         sign,
			SortOrder:    i,
		})
	}
	if err := s.repo.ReplaceComponents(ctx, tx, rule.ID, components); err != nil {
		return err
	}
	rule.Components = components
	return nil
}

func (s *Service) DisableRule(ctx context.Context, id snowflake.ID) error {
	rule, err := s.repo.FindRule(ctx, s.db, id)
	if err != nil {
		return err
	}
	if rule == nil {
		return domain.ErrRuleNotFound
	}
	return s.repo.SetRuleEnabled(ctx, s.db, id, false)
}

func (s *Service) GetRule(ctx context.Context, id snowflake.ID) (domain.Rule, error) {
	rule, err := s.repo.FindRule(ctx, s.db, id)
	if err != nil {
		return domain.Rule{}, err
	}
	if rule == nil {
		return domain.Rule{}, domain.ErrRuleNotFound
	}
	return *rule, nil
}

func (s *Service) ListRules(ctx context.Context, includeDisabled bool) ([]domain.Rule, error) {
	items, err := s.repo.ListRules(ctx, s.db, includeDisabled)
	if err != nil {
		return nil, err
	}
	rules := make([]domain.Rule, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		rules = append(rules, *item)
	}
	return rules, nil
}

// Resolve walks the enabled rules from most to least specific scope.
// Within one specificity level the newest rule wins.
func (s *Service) Resolve(ctx context.Context, userID, departmentID snowflake.ID, asOf time.Time) (domain.Rule, error) {
	rules, err := s.repo.ListRules(ctx, s.db, false)
	if err != nil {
		return domain.Rule{}, err
	}

	var personal, departmental, global *domain.Rule
	// ListRules orders by created_at DESC, id DESC, so the first hit per
	// specificity level is already the winner.
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		p, d := rule.AppliesTo(userID, departmentID)
		switch {
		case p:
			if personal == nil {
				personal = rule
			}
		case d:
			if departmental == nil {
				departmental = rule
			}
		case rule.IsGlobal():
			if global == nil {
				global = rule
			}
		}
	}

	switch {
	case personal != nil:
		return *personal, nil
	case departmental != nil:
		return *departmental, nil
	case global != nil:
		return *global, nil
	}
	return domain.Rule{}, domain.ErrNoApplicableRule
}

func (s *Service) GetPayout(ctx context.Context, userID snowflake.ID, periodStr string) (domain.PayoutRecord, error) {
	if _, err := period.Parse(periodStr); err != nil {
		return domain.PayoutRecord{}, err
	}
	payout, err := s.repo.FindPayout(ctx, s.db, userID, periodStr)
	if err != nil {
		return domain.PayoutRecord{}, err
	}
	if payout == nil {
		return domain.PayoutRecord{}, domain.ErrPayoutNotFound
	}
	return *payout, nil
}

func (s *Service) AddAdjustment(ctx context.Context, req domain.AddAdjustmentRequest) (domain.Adjustment, error) {
	if _, err := period.Parse(req.Month); err != nil {
		return domain.Adjustment{}, err
	}
	if req.Amount.IsZero() {
		return domain.Adjustment{}, domain.ErrInvalidRate
	}

	adj := domain.Adjustment{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		Month:     req.Month,
		Amount:    req.Amount,
		Currency:  strings.ToUpper(strings.TrimSpace(req.Currency)),
		Note:      req.Note,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertAdjustment(ctx, s.db, &adj); err != nil {
		return domain.Adjustment{}, err
	}
	return adj, nil
}

func (s *Service) ListAdjustments(ctx context.Context, userID snowflake.ID, month string) ([]domain.Adjustment, error) {
	items, err := s.repo.ListAdjustments(ctx, s.db, userID, month)
	if err != nil {
		return nil, err
	}
	adjustments := make([]domain.Adjustment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		adjustments = append(adjustments, *item)
	}
	return adjustments, nil
}

func validateRule(req domain.SaveRuleRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Currency) == "" {
		return domain.ErrInvalidRuleType
	}
	for _, scope := range req.Scopes {
		if scope.Kind != domain.ScopeKindUser && scope.Kind != domain.ScopeKindDepartment {
			return domain.ErrInvalidScope
		}
		if scope.TargetID == 0 {
			return domain.ErrInvalidScope
		}
	}

	switch req.RuleType {
	case domain.RuleTypeFixed:
		if len(req.Tiers) != 0 {
			return domain.ErrInvalidTierTable
		}
		if !req.FixedRate.Valid {
			return domain.ErrInvalidRate
		}
		if req.FixedRate.Decimal.IsNegative() || req.FixedRate.Decimal.GreaterThan(decimal.NewFromInt(1)) {
			return domain.ErrInvalidRate
		}
		return nil
	case domain.RuleTypeTiered:
		if req.FixedRate.Valid {
			return domain.ErrInvalidRate
		}
		return validateTierTable(req.Tiers)
	default:
		return domain.ErrInvalidRuleType
	}
}

// validateTierTable requires a contiguous partition of [0, inf): the
// first tier starts at 0, each tier starts where the previous ended,
// and the last tier is unbounded.
func validateTierTable(tiers []domain.TierInput) error {
	if len(tiers) == 0 {
		return domain.ErrInvalidTierTable
	}

	one := decimal.NewFromInt(1)
	expectedFrom := decimal.Zero
	for i, tier := range tiers {
		if tier.Rate.IsNegative() || tier.Rate.GreaterThan(one) {
			return domain.ErrInvalidRate
		}
		if !tier.FromAmount.Equal(expectedFrom) {
			return domain.ErrInvalidTierTable
		}
		last := i == len(tiers)-1
		if last {
			if tier.ToAmount.Valid {
				return domain.ErrInvalidTierTable
			}
			break
		}
		if !tier.ToAmount.Valid || tier.ToAmount.Decimal.LessThanOrEqual(tier.FromAmount) {
			return domain.ErrInvalidTierTable
		}
		expectedFrom = tier.ToAmount.Decimal
	}
	return nil
}
