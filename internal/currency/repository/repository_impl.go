package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/backoffice/internal/currency/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Currency, error) {
	var currency domain.Currency
	err := db.WithContext(ctx).Raw(
		`SELECT code, name, fixed_rate, floating_rate, status, updated_at
		 FROM currencies WHERE code = ?`,
		code,
	).Scan(&currency).Error
	if err != nil {
		return nil, err
	}
	if currency.Code == "" {
		return nil, nil
	}
	return &currency, nil
}

func (r *repo) ListEnabled(ctx context.Context, db *gorm.DB) ([]*domain.Currency, error) {
	var currencies []*domain.Currency
	err := db.WithContext(ctx).
		Model(&domain.Currency{}).
		Where("status = ?", domain.StatusEnabled).
		Order("code").
		Find(&currencies).Error
	if err != nil {
		return nil, err
	}
	return currencies, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, currency *domain.Currency) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE currencies SET name = ?, fixed_rate = ?, floating_rate = ?, updated_at = ? WHERE code = ?`,
		currency.Name,
		currency.FixedRate,
		currency.FloatingRate,
		currency.UpdatedAt,
		currency.Code,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO currencies (code, name, fixed_rate, floating_rate, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		currency.Code,
		currency.Name,
		currency.FixedRate,
		currency.FloatingRate,
		domain.StatusEnabled,
		currency.UpdatedAt,
	).Error
}

func (r *repo) FindRate(ctx context.Context, db *gorm.DB, code string, date time.Time) (*domain.Rate, error) {
	var rate domain.Rate
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, rate_date, rate, created_at
		 FROM currency_rates WHERE code = ? AND rate_date = ?`,
		code,
		date.Format("2006-01-02"),
	).Scan(&rate).Error
	if err != nil {
		return nil, err
	}
	if rate.ID == 0 {
		return nil, nil
	}
	return &rate, nil
}

func (r *repo) UpsertRate(ctx context.Context, db *gorm.DB, rate *domain.Rate) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE currency_rates SET rate = ? WHERE code = ? AND rate_date = ?`,
		rate.Value,
		rate.Code,
		rate.RateDate.Format("2006-01-02"),
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO currency_rates (id, code, rate_date, rate, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rate.ID,
		rate.Code,
		rate.RateDate.Format("2006-01-02"),
		rate.Value,
		rate.CreatedAt,
	).Error
}

func (r *repo) UpdateFloatingSnapshot(ctx context.Context, db *gorm.DB, code string, rate domain.Rate) error {
	return db.WithContext(ctx).Exec(
		`UPDATE currencies SET floating_rate = ?, updated_at = ? WHERE code = ?`,
		rate.Value,
		rate.CreatedAt,
		code,
	).Error
}
