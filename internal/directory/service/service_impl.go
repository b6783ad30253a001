package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/directory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("directory.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (domain.User, error) {
	user, err := s.repo.FindUserByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrUserNotFound
	}
	return *user, nil
}

func (s *Service) GetDepartment(ctx context.Context, id snowflake.ID) (domain.Department, error) {
	dept, err := s.repo.FindDepartmentByID(ctx, s.db, id)
	if err != nil {
		return domain.Department{}, err
	}
	if dept == nil {
		return domain.Department{}, domain.ErrDepartmentNotFound
	}
	return *dept, nil
}

func (s *Service) ListUsersInDepartment(ctx context.Context, departmentID snowflake.ID) ([]domain.User, error) {
	return s.ListActiveUsers(ctx, domain.UserFilter{DepartmentID: departmentID})
}

func (s *Service) ListActiveUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	items, err := s.repo.ListUsers(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		users = append(users, *item)
	}
	return users, nil
}
