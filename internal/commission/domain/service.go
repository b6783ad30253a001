package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
)

type TierInput struct {
	FromAmount decimal.Decimal     `json:"from_amount"`
	ToAmount   decimal.NullDecimal `json:"to_amount"`
	Rate       decimal.Decimal     `json:"rate"`
}

type ScopeInput struct {
	Kind     string       `json:"kind"`
	TargetID snowflake.ID `json:"target_id"`
}

type ComponentInput struct {
	Code         string          `json:"code"`
	DisplayName  string          `json:"display_name"`
	Kind         string          `json:"kind"`
	DefaultValue decimal.Decimal `json:"default_value"`
	Currency     string          `json:"currency"`
	Sign         int16           `json:"sign"`
}

type SaveRuleRequest struct {
	Name          string              `json:"name"`
	RuleType      string              `json:"rule_type"`
	Currency      string              `json:"currency"`
	FixedRate     decimal.NullDecimal `json:"fixed_rate"`
	IncludePrepay bool                `json:"include_prepay"`
	Tiers         []TierInput         `json:"tiers"`
	Scopes        []ScopeInput        `json:"scopes"`
	Components    []ComponentInput    `json:"components"`
}

type CalculateRequest struct {
	UserID          snowflake.ID
	Period          string
	DisplayCurrency string
	RateMode        currencydomain.RateMode
}

type BatchItem struct {
	UserID snowflake.ID  `json:"user_id"`
	Payout *PayoutRecord `json:"payout,omitempty"`
	Err    string        `json:"error,omitempty"`
}

type BatchResult struct {
	Period    string      `json:"period"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

type AddAdjustmentRequest struct {
	UserID   snowflake.ID
	Month    string
	Amount   decimal.Decimal
	Currency string
	Note     string
}

type Service interface {
	CreateRule(ctx context.Context, req SaveRuleRequest) (Rule, error)
	UpdateRule(ctx context.Context, id snowflake.ID, req SaveRuleRequest) (Rule, error)
	DisableRule(ctx context.Context, id snowflake.ID) error
	GetRule(ctx context.Context, id snowflake.ID) (Rule, error)
	ListRules(ctx context.Context, includeDisabled bool) ([]Rule, error)

	// Resolve picks the rule governing the user at asOf. Personal scope
	// beats department scope beats global; ties go to the most recently
	// created rule.
	Resolve(ctx context.Context, userID, departmentID snowflake.ID, asOf time.Time) (Rule, error)

	// Calculate computes and persists the user's payout for one period.
	// Re-running with the same inputs produces an identical record.
	Calculate(ctx context.Context, req CalculateRequest) (PayoutRecord, error)
	GetPayout(ctx context.Context, userID snowflake.ID, periodStr string) (PayoutRecord, error)
	CalculateAll(ctx context.Context, periodStr string, departmentID snowflake.ID, displayCurrency string, mode currencydomain.RateMode) (BatchResult, error)

	AddAdjustment(ctx context.Context, req AddAdjustmentRequest) (Adjustment, error)
	ListAdjustments(ctx context.Context, userID snowflake.ID, month string) ([]Adjustment, error)
}

var (
	ErrNoApplicableRule = errors.New("no_applicable_rule")
	ErrRuleNotFound     = errors.New("rule_not_found")
	ErrPayoutNotFound   = errors.New("payout_not_found")
	ErrTierTableGap     = errors.New("tier_table_gap")
	ErrInvalidTierTable = errors.New("invalid_tier_table")
	ErrInvalidRate      = errors.New("invalid_rate")
	ErrInvalidRuleType  = errors.New("invalid_rule_type")
	ErrInvalidScope     = errors.New("invalid_scope")
)
