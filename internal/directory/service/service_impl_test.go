package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/backoffice/internal/directory/domain"
	"github.com/smallbiznis/backoffice/internal/directory/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Department{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
	})
	return svc, db, node
}

func TestGetUser(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	deptID := node.Generate()
	userID := node.Generate()
	require.NoError(t, db.Create(&domain.Department{ID: deptID, Name: "sales", Status: domain.StatusActive}).Error)
	require.NoError(t, db.Create(&domain.User{
		ID: userID, Realname: "Chen Wei", DepartmentID: deptID, Status: domain.StatusActive,
	}).Error)

	user, err := svc.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Chen Wei", user.Realname)
	assert.Equal(t, deptID, user.DepartmentID)

	_, err = svc.GetUser(ctx, node.Generate())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	dept, err := svc.GetDepartment(ctx, deptID)
	require.NoError(t, err)
	assert.Equal(t, "sales", dept.Name)

	_, err = svc.GetDepartment(ctx, node.Generate())
	assert.ErrorIs(t, err, domain.ErrDepartmentNotFound)
}

func TestListActiveUsers(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	deptA := node.Generate()
	deptB := node.Generate()
	require.NoError(t, db.Create(&domain.User{
		ID: node.Generate(), Realname: "Alice", DepartmentID: deptA, Status: domain.StatusActive,
	}).Error)
	require.NoError(t, db.Create(&domain.User{
		ID: node.Generate(), Realname: "Bob", DepartmentID: deptB, Status: domain.StatusActive,
	}).Error)
	// Departed users never show up.
	departedID := node.Generate()
	require.NoError(t, db.Create(&domain.User{
		ID: departedID, Realname: "Carol", DepartmentID: deptA, Status: domain.StatusActive,
	}).Error)
	require.NoError(t, db.Model(&domain.User{}).Where("id = ?", departedID).Update("status", 0).Error)

	all, err := svc.ListActiveUsers(ctx, domain.UserFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alice", all[0].Realname)
	assert.Equal(t, "Bob", all[1].Realname)

	inDeptA, err := svc.ListUsersInDepartment(ctx, deptA)
	require.NoError(t, err)
	require.Len(t, inDeptA, 1)
	assert.Equal(t, "Alice", inDeptA[0].Realname)

	only, err := svc.ListActiveUsers(ctx, domain.UserFilter{UserID: all[1].ID})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "Bob", only[0].Realname)
}
