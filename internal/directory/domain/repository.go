package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindUserByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindDepartmentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Department, error)
	ListUsers(ctx context.Context, db *gorm.DB, filter UserFilter) ([]*User, error)
}
