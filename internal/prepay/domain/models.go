package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"

	SourceManualAdjust       = "manual_adjust"
	SourceApplyToInstallment = "apply_to_installment"
	SourceReceipt            = "receipt"
	SourceRefund             = "refund"
)

// LedgerEntry is one immutable movement on a customer's prepay balance.
// Corrections are new entries, never edits.
type LedgerEntry struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	Direction  string            `gorm:"not null" json:"direction"`
	Amount     decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"amount"`
	SourceType string            `gorm:"not null" json:"source_type"`
	SourceID   snowflake.ID      `json:"source_id,omitempty"`
	Method     string            `gorm:"not null;default:''" json:"method"`
	Note       string            `gorm:"not null;default:''" json:"note"`
	Metadata   datatypes.JSONMap `gorm:"not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy  snowflake.ID      `json:"created_by,omitempty"`
}

func (LedgerEntry) TableName() string { return "prepay_ledger_entries" }
