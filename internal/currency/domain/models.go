package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Currency is a quoted currency. Rates are expressed against the base
// currency: 1 unit of the base equals Rate units of this currency, so the
// base currency itself carries rate 1.
type Currency struct {
	Code         string              `gorm:"primaryKey" json:"code"`
	Name         string              `gorm:"not null;default:''" json:"name"`
	FixedRate    decimal.NullDecimal `gorm:"type:numeric(20,8)" json:"fixed_rate"`
	FloatingRate decimal.NullDecimal `gorm:"type:numeric(20,8)" json:"floating_rate"`
	Status       int16               `gorm:"not null;default:1" json:"status"`
	UpdatedAt    time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Rate is one day's floating quote for a currency.
type Rate struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	Code      string          `gorm:"not null;uniqueIndex:ux_currency_rates_code_date" json:"code"`
	RateDate  time.Time       `gorm:"type:date;not null;uniqueIndex:ux_currency_rates_code_date" json:"rate_date"`
	Value     decimal.Decimal `gorm:"column:rate;type:numeric(20,8);not null" json:"rate"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Rate) TableName() string { return "currency_rates" }

const StatusEnabled int16 = 1
