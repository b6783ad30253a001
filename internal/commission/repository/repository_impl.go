package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/commission/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindRule(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Rule, error) {
	var rule domain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, rule_type, currency, fixed_rate, include_prepay, enabled, created_at, updated_at
		 FROM commission_rules WHERE id = ?`,
		id,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	if err := r.loadRelations(ctx, db, []*domain.Rule{&rule}); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repo) ListRules(ctx context.Context, db *gorm.DB, includeDisabled bool) ([]*domain.Rule, error) {
	var rules []*domain.Rule
	stmt := db.WithContext(ctx).Model(&domain.Rule{})
	if !includeDisabled {
		stmt = stmt.Where("enabled = ?", true)
	}
	if err := stmt.Order("created_at DESC, id DESC").Find(&rules).Error; err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, db, rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) loadRelations(ctx context.Context, db *gorm.DB, rules []*domain.Rule) error {
	if len(rules) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(rules))
	byID := make(map[snowflake.ID]*domain.Rule, len(rules))
	for _, rule := range rules {
		ids = append(ids, rule.ID)
		byID[rule.ID] = rule
	}

	var tiers []domain.Tier
	if err := db.WithContext(ctx).
		Where("rule_id IN (?)", ids).
		Order("rule_id, from_amount").
		Find(&tiers).Error; err != nil {
		return err
	}
	for _, tier := range tiers {
		if rule := byID[tier.RuleID]; rule != nil {
			rule.Tiers = append(rule.Tiers, tier)
		}
	}

	var scopes []domain.RuleScope
	if err := db.WithContext(ctx).
		Where("rule_id IN (?)", ids).
		Order("rule_id, id").
		Find(&scopes).Error; err != nil {
		return err
	}
	for _, scope := range scopes {
		if rule := byID[scope.RuleID]; rule != nil {
			rule.Scopes = append(rule.Scopes, scope)
		}
	}

	var components []domain.SalaryComponent
	if err := db.WithContext(ctx).
		Where("rule_id IN (?)", ids).
		Order("rule_id, sort_order, id").
		Find(&components).Error; err != nil {
		return err
	}
	for _, component := range components {
		if rule := byID[component.RuleID]; rule != nil {
			rule.Components = append(rule.Components, component)
		}
	}
	return nil
}

func (r *repo) InsertRule(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Create(rule).Error
}

func (r *repo) UpdateRule(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Exec(
		`UPDATE commission_rules
		 SET name = ?, rule_type = ?, currency = ?, fixed_rate = ?, include_prepay = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		rule.Name, rule.RuleType, rule.Currency, rule.FixedRate, rule.IncludePrepay, rule.ID,
	).Error
}

func (r *repo) SetRuleEnabled(ctx context.Context, db *gorm.DB, id snowflake.ID, enabled bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE commission_rules SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		enabled, id,
	).Error
}

func (r *repo) ReplaceTiers(ctx context.Context, db *gorm.DB, ruleID snowflake.ID, tiers []domain.Tier) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM commission_tiers WHERE rule_id = ?`, ruleID).Error; err != nil {
		return err
	}
	if len(tiers) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&tiers).Error
}

func (r *repo) ReplaceScopes(ctx context.Context, db *gorm.DB, ruleID snowflake.ID, scopes []domain.RuleScope) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM commission_rule_scopes WHERE rule_id = ?`, ruleID).Error; err != nil {
		return err
	}
	if len(scopes) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&scopes).Error
}

func (r *repo) ReplaceComponents(ctx context.Context, db *gorm.DB, ruleID snowflake.ID, components []domain.SalaryComponent) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM salary_components WHERE rule_id = ?`, ruleID).Error; err != nil {
		return err
	}
	if len(components) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&components).Error
}

func (r *repo) FindTierLock(ctx context.Context, db *gorm.DB, contractID snowflake.ID) (*domain.TierLock, error) {
	var lock domain.TierLock
	err := db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Limit(1).
		Find(&lock).Error
	if err != nil {
		return nil, err
	}
	if lock.ID == 0 {
		return nil, nil
	}
	return &lock, nil
}

func (r *repo) InsertTierLock(ctx context.Context, db *gorm.DB, lock *domain.TierLock) (*domain.TierLock, error) {
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract_id"}},
			DoNothing: true,
		}).
		Create(lock).Error
	if err != nil {
		return nil, err
	}
	// Read back so a concurrent winner's values are returned.
	return r.FindTierLock(ctx, db, lock.ContractID)
}

func (r *repo) FindPayout(ctx context.Context, db *gorm.DB, userID snowflake.ID, periodStr string) (*domain.PayoutRecord, error) {
	var payout domain.PayoutRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND period = ?", userID, periodStr).
		Limit(1).
		Find(&payout).Error
	if err != nil {
		return nil, err
	}
	if payout.ID == 0 {
		return nil, nil
	}
	return &payout, nil
}

func (r *repo) UpsertPayout(ctx context.Context, db *gorm.DB, payout *domain.PayoutRecord) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "period"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"rule_id", "tier_base", "tier_rate",
				"new_order_commission", "installment_commission",
				"currency", "display_currency", "display_amount",
				"rate_mode", "detail", "updated_at",
			}),
		}).
		Create(payout).Error
}

func (r *repo) ListOwnedCustomerIDs(ctx context.Context, db *gorm.DB, ownerUserID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM customers WHERE owner_user_id = ?`,
		ownerUserID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) InsertAdjustment(ctx context.Context, db *gorm.DB, adj *domain.Adjustment) error {
	return db.WithContext(ctx).Create(adj).Error
}

func (r *repo) ListAdjustments(ctx context.Context, db *gorm.DB, userID snowflake.ID, month string) ([]*domain.Adjustment, error) {
	var adjustments []*domain.Adjustment
	err := db.WithContext(ctx).
		Where("user_id = ? AND month = ?", userID, month).
		Order("id").
		Find(&adjustments).Error
	if err != nil {
		return nil, err
	}
	return adjustments, nil
}
