package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindMonthly(ctx context.Context, db *gorm.DB, userID snowflake.ID, month string) (*MonthlyInput, error)
	UpsertMonthly(ctx context.Context, db *gorm.DB, input *MonthlyInput) error
}
