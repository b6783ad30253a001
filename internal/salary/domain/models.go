package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MonthlyInput holds the hand-entered salary figures for one user and
// month. Missing rows fall back to the rule's component defaults.
type MonthlyInput struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID     snowflake.ID    `gorm:"not null;uniqueIndex:ux_salary_monthly_user_month" json:"user_id"`
	Month      string          `gorm:"not null;uniqueIndex:ux_salary_monthly_user_month" json:"month"`
	BaseSalary decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"base_salary"`
	Attendance decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"attendance"`
	Incentive  decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"incentive"`
	Adjustment decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"adjustment"`
	Deduction  decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"deduction"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (MonthlyInput) TableName() string { return "salary_monthly_inputs" }

// SlipLine is one valued row of a salary slip. Amount is in the line's
// source currency, Converted in the slip's display currency.
type SlipLine struct {
	Code        string          `json:"code"`
	DisplayName string          `json:"display_name"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Converted   decimal.Decimal `json:"converted"`
	Sign        int16           `json:"sign"`
}

type Slip struct {
	UserID          snowflake.ID    `json:"user_id"`
	UserName        string          `json:"user_name"`
	Period          string          `json:"period"`
	DisplayCurrency string          `json:"display_currency"`
	Lines           []SlipLine      `json:"lines"`
	Commission      decimal.Decimal `json:"commission"`
	Total           decimal.Decimal `json:"total"`
}
