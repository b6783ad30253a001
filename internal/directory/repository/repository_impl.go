package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/directory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindUserByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, realname, email, department_id, status, created_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindDepartmentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Department, error) {
	var dept domain.Department
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, status, created_at FROM departments WHERE id = ?`,
		id,
	).Scan(&dept).Error
	if err != nil {
		return nil, err
	}
	if dept.ID == 0 {
		return nil, nil
	}
	return &dept, nil
}

func (r *repo) ListUsers(ctx context.Context, db *gorm.DB, filter domain.UserFilter) ([]*domain.User, error) {
	var users []*domain.User
	stmt := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("status = ?", domain.StatusActive)
	if filter.UserID != 0 {
		stmt = stmt.Where("id = ?", filter.UserID)
	}
	if filter.DepartmentID != 0 {
		stmt = stmt.Where("department_id = ?", filter.DepartmentID)
	}
	if err := stmt.Order("realname, id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
