package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a row in the user directory. The directory is owned by the
// excluded identity system; this engine only reads it for rule-scope
// resolution and batch calculation.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Realname     string       `gorm:"not null" json:"realname"`
	Email        string       `gorm:"not null;default:''" json:"email,omitempty"`
	DepartmentID snowflake.ID `gorm:"index" json:"department_id,omitempty"`
	Status       int16        `gorm:"not null;default:1" json:"status"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

type Department struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	Status    int16        `gorm:"not null;default:1" json:"status"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

const StatusActive int16 = 1
