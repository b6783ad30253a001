package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindRule(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rule, error)
	// ListRules returns rules with tiers, scopes and components loaded.
	ListRules(ctx context.Context, db *gorm.DB, includeDisabled bool) ([]*Rule, error)
	InsertRule(ctx context.Context, db *gorm.DB, rule *Rule) error
	UpdateRule(ctx context.Context, db *gorm.DB, rule *Rule) error
	SetRuleEnabled(ctx context.Context, db *gorm.DB, id snowflake.ID, enabled bool) error
	ReplaceTiers(ctx context.Context, db *gorm.DB, ruleID snowflake.ID, tiers []Tier) error
	ReplaceScopes(ctx context.Context, db *gorm.DB, ruleID snowflake.ID, scopes []RuleScope) error
	ReplaceComponents(ctx context.Context, db *gorm.DB, ruleID snowflake.ID, components []SalaryComponent) error

	FindTierLock(ctx context.Context, db *gorm.DB, contractID snowflake.ID) (*TierLock, error)
	// InsertTierLock is insert-if-absent on contract_id. Returns the
	// winning row either way.
	InsertTierLock(ctx context.Context, db *gorm.DB, lock *TierLock) (*TierLock, error)

	FindPayout(ctx context.Context, db *gorm.DB, userID snowflake.ID, periodStr string) (*PayoutRecord, error)
	UpsertPayout(ctx context.Context, db *gorm.DB, payout *PayoutRecord) error

	ListOwnedCustomerIDs(ctx context.Context, db *gorm.DB, ownerUserID snowflake.ID) ([]snowflake.ID, error)

	InsertAdjustment(ctx context.Context, db *gorm.DB, adj *Adjustment) error
	ListAdjustments(ctx context.Context, db *gorm.DB, userID snowflake.ID, month string) ([]*Adjustment, error)
}
