package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Currency, error)
	ListEnabled(ctx context.Context, db *gorm.DB) ([]*Currency, error)
	Upsert(ctx context.Context, db *gorm.DB, currency *Currency) error
	FindRate(ctx context.Context, db *gorm.DB, code string, date time.Time) (*Rate, error)
	UpsertRate(ctx context.Context, db *gorm.DB, rate *Rate) error
	UpdateFloatingSnapshot(ctx context.Context, db *gorm.DB, code string, rate Rate) error
}
