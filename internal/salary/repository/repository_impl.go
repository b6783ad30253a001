package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/salary/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindMonthly(ctx context.Context, db *gorm.DB, userID snowflake.ID, month string) (*domain.MonthlyInput, error) {
	var input domain.MonthlyInput
	err := db.WithContext(ctx).
		Where("user_id = ? AND month = ?", userID, month).
		Limit(1).
		Find(&input).Error
	if err != nil {
		return nil, err
	}
	if input.ID == 0 {
		return nil, nil
	}
	return &input, nil
}

func (r *repo) UpsertMonthly(ctx context.Context, db *gorm.DB, input *domain.MonthlyInput) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"base_salary", "attendance", "incentive", "adjustment", "deduction", "updated_at",
			}),
		}).
		Create(input).Error
}
