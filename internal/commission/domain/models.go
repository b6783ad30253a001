package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	RuleTypeFixed  = "fixed"
	RuleTypeTiered = "tiered"

	ScopeKindUser       = "user"
	ScopeKindDepartment = "department"
)

// Rule configures how one salesperson's commission is computed. Scope
// rows bind it to users or departments; a rule with no scope rows is
// the global fallback. Rules are soft-disabled, never deleted, so old
// payout records keep a valid reference.
type Rule struct {
	ID            snowflake.ID        `gorm:"primaryKey" json:"id"`
	Name          string              `gorm:"not null" json:"name"`
	RuleType      string              `gorm:"not null" json:"rule_type"`
	Currency      string              `gorm:"not null" json:"currency"`
	FixedRate     decimal.NullDecimal `gorm:"type:numeric(10,6)" json:"fixed_rate,omitempty"`
	IncludePrepay bool                `gorm:"not null;default:false" json:"include_prepay"`
	Enabled       bool                `gorm:"not null;default:true" json:"enabled"`
	CreatedAt     time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Tiers      []Tier            `gorm:"-" json:"tiers,omitempty"`
	Scopes     []RuleScope       `gorm:"-" json:"scopes,omitempty"`
	Components []SalaryComponent `gorm:"-" json:"components,omitempty"`
}

func (Rule) TableName() string { return "commission_rules" }

// IsGlobal reports whether the rule applies to everyone.
func (r Rule) IsGlobal() bool { return len(r.Scopes) == 0 }

// AppliesTo reports whether the rule is scoped to the user directly or
// through the user's department.
func (r Rule) AppliesTo(userID, departmentID snowflake.ID) (personal, departmental bool) {
	for _, scope := range r.Scopes {
		switch scope.Kind {
		case ScopeKindUser:
			if scope.TargetID == userID {
				personal = true
			}
		case ScopeKindDepartment:
			if departmentID != 0 && scope.TargetID == departmentID {
				departmental = true
			}
		}
	}
	return personal, departmental
}

// Tier is one band of a tiered rule. ToAmount null means unbounded.
// Tiers of a valid rule partition [0, inf) with no gaps or overlaps.
type Tier struct {
	ID         snowflake.ID        `gorm:"primaryKey" json:"id"`
	RuleID     snowflake.ID        `gorm:"not null;index" json:"rule_id"`
	FromAmount decimal.Decimal     `gorm:"type:numeric(20,4);not null" json:"from_amount"`
	ToAmount   decimal.NullDecimal `gorm:"type:numeric(20,4)" json:"to_amount,omitempty"`
	Rate       decimal.Decimal     `gorm:"type:numeric(10,6);not null" json:"rate"`
	SortOrder  int                 `gorm:"not null;default:0" json:"sort_order"`
}

func (Tier) TableName() string { return "commission_tiers" }

type RuleScope struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	RuleID   snowflake.ID `gorm:"not null;index" json:"rule_id"`
	Kind     string       `gorm:"not null" json:"kind"`
	TargetID snowflake.ID `gorm:"not null" json:"target_id"`
}

func (RuleScope) TableName() string { return "commission_rule_scopes" }

const (
	ComponentKindFixed      = "fixed"
	ComponentKindCalculated = "calculated"
	ComponentKindManual     = "manual"
)

// SalaryComponent is one line of the salary breakdown configured on a
// rule. Sign +1 adds to the slip total, -1 deducts.
type SalaryComponent struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	RuleID       snowflake.ID    `gorm:"not null;index" json:"rule_id"`
	Code         string          `gorm:"not null" json:"code"`
	DisplayName  string          `gorm:"not null" json:"display_name"`
	Kind         string          `gorm:"not null" json:"kind"`
	DefaultValue decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"default_value"`
	Currency     string          `gorm:"not null" json:"currency"`
	Sign         int16           `gorm:"not null;default:1" json:"sign"`
	SortOrder    int             `gorm:"not null;default:0" json:"sort_order"`
}

func (SalaryComponent) TableName() string { return "salary_components" }

// TierLock freezes the tier bracket a contract earned in its first paid
// period. Later installments of the contract pay commission at this
// rate no matter how the salesperson performs afterwards.
type TierLock struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	ContractID snowflake.ID    `gorm:"not null;uniqueIndex" json:"contract_id"`
	Period     string          `gorm:"not null" json:"period"`
	TierBase   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"tier_base"`
	TierRate   decimal.Decimal `gorm:"type:numeric(10,6);not null" json:"tier_rate"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (TierLock) TableName() string { return "commission_tier_locks" }

// PayoutRecord is the persisted result of one user+period calculation.
// Recalculating an open period replaces the row; the unique key keeps
// concurrent recalculations from double-writing.
type PayoutRecord struct {
	ID                    snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID                snowflake.ID      `gorm:"not null;uniqueIndex:ux_commission_payouts_user_period" json:"user_id"`
	Period                string            `gorm:"not null;uniqueIndex:ux_commission_payouts_user_period" json:"period"`
	RuleID                snowflake.ID      `gorm:"not null" json:"rule_id"`
	TierBase              decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"tier_base"`
	TierRate              decimal.Decimal   `gorm:"type:numeric(10,6);not null" json:"tier_rate"`
	NewOrderCommission    decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"new_order_commission"`
	InstallmentCommission decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"installment_commission"`
	Currency              string            `gorm:"not null" json:"currency"`
	DisplayCurrency       string            `gorm:"not null" json:"display_currency"`
	DisplayAmount         decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"display_amount"`
	RateMode              string            `gorm:"not null" json:"rate_mode"`
	Detail                datatypes.JSONMap `gorm:"not null;default:'{}'" json:"detail,omitempty"`
	CreatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PayoutRecord) TableName() string { return "commission_payouts" }

// Total is the payout in rule currency before display conversion.
func (p PayoutRecord) Total() decimal.Decimal {
	return p.NewOrderCommission.Add(p.InstallmentCommission)
}

// Adjustment is a manual correction applied on top of the calculated
// commission for one user and month.
type Adjustment struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID    `gorm:"not null" json:"user_id"`
	Month     string          `gorm:"not null" json:"month"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency  string          `gorm:"not null" json:"currency"`
	Note      string          `gorm:"not null;default:''" json:"note"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Adjustment) TableName() string { return "commission_adjustments" }
