package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	ContractStatusActive = "active"
	ContractStatusClosed = "closed"
	ContractStatusVoid   = "void"

	InstallmentStatusPending = "pending"
	InstallmentStatusPartial = "partial"
	InstallmentStatusPaid    = "paid"
	InstallmentStatusOverdue = "overdue"

	ReceiptSourceCash        = "cash"
	ReceiptSourcePrepayApply = "prepay_apply"
)

// Contract is a signed sales contract. FixedRateSnapshot freezes the
// contract currency's base quote at signing so later installment
// commissions convert at the signing rate, not the current one.
type Contract struct {
	ID                snowflake.ID        `gorm:"primaryKey" json:"id"`
	CustomerID        snowflake.ID        `gorm:"not null;index" json:"customer_id"`
	SalesUserID       snowflake.ID        `json:"sales_user_id,omitempty"`
	Title             string              `gorm:"not null;default:''" json:"title"`
	SignDate          time.Time           `gorm:"type:date;not null" json:"sign_date"`
	NetAmount         decimal.Decimal     `gorm:"type:numeric(20,4);not null;default:0" json:"net_amount"`
	Currency          string              `gorm:"not null" json:"currency"`
	FixedRateSnapshot decimal.NullDecimal `gorm:"type:numeric(20,8)" json:"fixed_rate_snapshot,omitempty"`
	IsFirst           bool                `gorm:"not null;default:false" json:"is_first"`
	Status            string              `gorm:"not null;default:'active'" json:"status"`
	CreatedAt         time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

type Installment struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	ContractID    snowflake.ID    `gorm:"not null;index" json:"contract_id"`
	CustomerID    snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	InstallmentNo int             `gorm:"not null" json:"installment_no"`
	DueDate       time.Time       `gorm:"type:date;not null" json:"due_date"`
	AmountDue     decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount_due"`
	AmountPaid    decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"amount_paid"`
	Status        string          `gorm:"not null;default:'pending'" json:"status"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Remaining is the unpaid portion of the installment.
func (i Installment) Remaining() decimal.Decimal {
	return i.AmountDue.Sub(i.AmountPaid)
}

// Receipt records money landing on a contract. Cash receipts carry the
// received amount; prepay applications carry AmountApplied with
// AmountReceived zero, which is how the commission calculator keeps
// deposits and applications from being counted twice.
type Receipt struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID          snowflake.ID    `gorm:"not null" json:"customer_id"`
	ContractID          snowflake.ID    `gorm:"not null;index" json:"contract_id"`
	InstallmentID       snowflake.ID    `json:"installment_id,omitempty"`
	SalesUserIDSnapshot snowflake.ID    `json:"sales_user_id_snapshot,omitempty"`
	SourceType          string          `gorm:"not null;default:'cash'" json:"source_type"`
	SourceID            snowflake.ID    `json:"source_id,omitempty"`
	ReceivedDate        time.Time       `gorm:"type:date;not null;index" json:"received_date"`
	AmountReceived      decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"amount_received"`
	AmountApplied       decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"amount_applied"`
	Currency            string          `gorm:"not null" json:"currency"`
	Method              string          `gorm:"not null;default:''" json:"method"`
	Note                string          `gorm:"not null;default:''" json:"note"`
	CreatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Amount is the portion of the receipt that counts toward commission.
func (r Receipt) Amount() decimal.Decimal {
	if r.SourceType == ReceiptSourcePrepayApply {
		return r.AmountApplied
	}
	return r.AmountReceived
}
