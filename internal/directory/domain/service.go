package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// UserFilter narrows ListActiveUsers to one user or one department.
type UserFilter struct {
	UserID       snowflake.ID
	DepartmentID snowflake.ID
}

type Service interface {
	GetUser(ctx context.Context, id snowflake.ID) (User, error)
	GetDepartment(ctx context.Context, id snowflake.ID) (Department, error)
	ListUsersInDepartment(ctx context.Context, departmentID snowflake.ID) ([]User, error)
	ListActiveUsers(ctx context.Context, filter UserFilter) ([]User, error)
}

var (
	ErrUserNotFound       = errors.New("user_not_found")
	ErrDepartmentNotFound = errors.New("department_not_found")
)
