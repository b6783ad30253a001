package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	commissiondomain "github.com/smallbiznis/backoffice/internal/commission/domain"
	"github.com/smallbiznis/backoffice/internal/config"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
	currencyrepo "github.com/smallbiznis/backoffice/internal/currency/repository"
	currencyservice "github.com/smallbiznis/backoffice/internal/currency/service"
	directorydomain "github.com/smallbiznis/backoffice/internal/directory/domain"
	"github.com/smallbiznis/backoffice/internal/salary/domain"
	"github.com/smallbiznis/backoffice/internal/salary/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type directoryStub struct {
	users map[snowflake.ID]directorydomain.User
}

func (s *directoryStub) GetUser(ctx context.Context, id snowflake.ID) (directorydomain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return directorydomain.User{}, directorydomain.ErrUserNotFound
	}
	return user, nil
}

func (s *directoryStub) GetDepartment(ctx context.Context, id snowflake.ID) (directorydomain.Department, error) {
	return directorydomain.Department{}, directorydomain.ErrDepartmentNotFound
}

func (s *directoryStub) ListUsersInDepartment(ctx context.Context, departmentID snowflake.ID) ([]directorydomain.User, error) {
	return s.ListActiveUsers(ctx, directorydomain.UserFilter{DepartmentID: departmentID})
}

func (s *directoryStub) ListActiveUsers(ctx context.Context, filter directorydomain.UserFilter) ([]directorydomain.User, error) {
	var users []directorydomain.User
	for _, user := range s.users {
		if filter.DepartmentID != 0 && user.DepartmentID != filter.DepartmentID {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// commissionStub serves canned rules, payouts and adjustments so slip
// composition can be tested without the full calculation pipeline.
type commissionStub struct {
	rules       map[snowflake.ID]commissiondomain.Rule
	payouts     map[string]commissiondomain.PayoutRecord
	adjustments map[string][]commissiondomain.Adjustment
	calculated  int
}

func payoutKey(userID snowflake.ID, period string) string {
	return fmt.Sprintf("%d:%s", userID, period)
}

func (s *commissionStub) Resolve(ctx context.Context, userID, departmentID snowflake.ID, asOf time.Time) (commissiondomain.Rule, error) {
	rule, ok := s.rules[userID]
	if !ok {
		return commissiondomain.Rule{}, commissiondomain.ErrNoApplicableRule
	}
	return rule, nil
}

func (s *commissionStub) GetPayout(ctx context.Context, userID snowflake.ID, periodStr string) (commissiondomain.PayoutRecord, error) {
	payout, ok := s.payouts[payoutKey(userID, periodStr)]
	if !ok {
		return commissiondomain.PayoutRecord{}, commissiondomain.ErrPayoutNotFound
	}
	return payout, nil
}

func (s *commissionStub) Calculate(ctx context.Context, req commissiondomain.CalculateRequest) (commissiondomain.PayoutRecord, error) {
	s.calculated++
	payout := commissiondomain.PayoutRecord{
		UserID:             req.UserID,
		Period:             req.Period,
		NewOrderCommission: d("45"),
		Currency:           "CNY",
	}
	s.payouts[payoutKey(req.UserID, req.Period)] = payout
	return payout, nil
}

func (s *commissionStub) ListAdjustments(ctx context.Context, userID snowflake.ID, month string) ([]commissiondomain.Adjustment, error) {
	return s.adjustments[payoutKey(userID, month)], nil
}

func (s *commissionStub) CreateRule(ctx context.Context, req commissiondomain.SaveRuleRequest) (commissiondomain.Rule, error) {
	return commissiondomain.Rule{}, nil
}

func (s *commissionStub) UpdateRule(ctx context.Context, id snowflake.ID, req commissiondomain.SaveRuleRequest) (commissiondomain.Rule, error) {
	return commissiondomain.Rule{}, nil
}

func (s *commissionStub) DisableRule(ctx context.Context, id snowflake.ID) error { return nil }

func (s *commissionStub) GetRule(ctx context.Context, id snowflake.ID) (commissiondomain.Rule, error) {
	return commissiondomain.Rule{}, commissiondomain.ErrRuleNotFound
}

func (s *commissionStub) ListRules(ctx context.Context, includeDisabled bool) ([]commissiondomain.Rule, error) {
	return nil, nil
}

func (s *commissionStub) CalculateAll(ctx context.Context, periodStr string, departmentID snowflake.ID, displayCurrency string, mode currencydomain.RateMode) (commissiondomain.BatchResult, error) {
	return commissiondomain.BatchResult{}, nil
}

func (s *commissionStub) AddAdjustment(ctx context.Context, req commissiondomain.AddAdjustmentRequest) (commissiondomain.Adjustment, error) {
	return commissiondomain.Adjustment{}, nil
}

type testEnv struct {
	db         *gorm.DB
	svc        domain.Service
	node       *snowflake.Node
	users      *directoryStub
	commission *commissionStub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.MonthlyInput{},
		&currencydomain.Currency{}, &currencydomain.Rate{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	holder := config.NewStaticEngineConfigHolder(config.DefaultEngineConfig())

	currencySvc := currencyservice.New(currencyservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   currencyrepo.Provide(),
		Engine: holder,
	})

	env := &testEnv{
		db:    db,
		node:  node,
		users: &directoryStub{users: map[snowflake.ID]directorydomain.User{}},
		commission: &commissionStub{
			rules:       map[snowflake.ID]commissiondomain.Rule{},
			payouts:     map[string]commissiondomain.PayoutRecord{},
			adjustments: map[string][]commissiondomain.Adjustment{},
		},
	}
	env.svc = New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)),
		Engine:     holder,
		Repo:       repository.Provide(),
		Commission: env.commission,
		Currency:   currencySvc,
		Directory:  env.users,
	})
	return env
}

func (e *testEnv) addUser(t *testing.T) snowflake.ID {
	t.Helper()
	id := e.node.Generate()
	e.users.users[id] = directorydomain.User{
		ID:       id,
		Realname: fmt.Sprintf("user-%d", id),
		Status:   directorydomain.StatusActive,
	}
	return id
}

func (e *testEnv) grantRule(userID snowflake.ID, components ...commissiondomain.SalaryComponent) {
	e.commission.rules[userID] = commissiondomain.Rule{
		ID:         e.node.Generate(),
		Name:       "stub rule",
		RuleType:   commissiondomain.RuleTypeFixed,
		Currency:   "CNY",
		Enabled:    true,
		Components: components,
	}
}

func TestSaveMonthly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.addUser(t)

	_, err := env.svc.SaveMonthly(ctx, domain.SaveMonthlyRequest{UserID: userID, Month: "junk"})
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)

	_, err = env.svc.SaveMonthly(ctx, domain.SaveMonthlyRequest{UserID: env.node.Generate(), Month: "2025-06"})
	assert.ErrorIs(t, err, directorydomain.ErrUserNotFound)

	saved, err := env.svc.SaveMonthly(ctx, domain.SaveMonthlyRequest{
		UserID:     userID,
		Month:      "2025-06",
		BaseSalary: d("8000"),
		Deduction:  d("150"),
	})
	require.NoError(t, err)
	assert.True(t, saved.BaseSalary.Equal(d("8000")))

	// Saving again replaces the month's figures.
	_, err = env.svc.SaveMonthly(ctx, domain.SaveMonthlyRequest{
		UserID:     userID,
		Month:      "2025-06",
		BaseSalary: d("8500"),
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, env.db.Model(&domain.MonthlyInput{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var row domain.MonthlyInput
	require.NoError(t, env.db.First(&row, "user_id = ? AND month = ?", userID, "2025-06").Error)
	assert.True(t, row.BaseSalary.Equal(d("8500")), "base %s", row.BaseSalary)
}

func TestComposeWithDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.addUser(t)
	env.grantRule(userID)

	_, err := env.svc.SaveMonthly(ctx, domain.SaveMonthlyRequest{
		UserID:     userID,
		Month:      "2025-06",
		BaseSalary: d("8000"),
		Attendance: d("200"),
		Deduction:  d("150"),
	})
	require.NoError(t, err)

	env.commission.payouts[payoutKey(userID, "2025-06")] = commissiondomain.PayoutRecord{
		UserID:             userID,
		Period:             "2025-06",
		NewOrderCommission: d("45"),
		Currency:           "CNY",
	}

	slip, err := env.svc.Compose(ctx, domain.ComposeRequest{UserID: userID, Period: "2025-06"})
	require.NoError(t, err)

	assert.Equal(t, "2025-06", slip.Period)
	assert.Equal(t, "CNY", slip.DisplayCurrency)
	require.Len(t, slip.Lines, 6)
	assert.True(t, slip.Commission.Equal(d("45")), "commission %s", slip.Commission)
	// 8000 + 200 + 0 + 45 + 0 - 150
	assert.True(t, slip.Total.Equal(d("8095")), "total %s", slip.Total)
	assert.Equal(t, 0, env.commission.calculated)

	byCode := map[string]domain.SlipLine{}
	for _, line := range slip.Lines {
		byCode[line.Code] = line
	}
	assert.Equal(t, int16(-1), byCode["deduction"].Sign)
	assert.True(t, byCode["deduction"].Converted.Equal(d("150")))
}

func TestComposeCalculatesMissingPayout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.addUser(t)
	env.grantRule(userID)

	slip, err := env.svc.Compose(ctx, domain.ComposeRequest{UserID: userID, Period: "2025-06"})
	require.NoError(t, err)
	assert.Equal(t, 1, env.commission.calculated)
	assert.True(t, slip.Commission.Equal(d("45")), "commission %s", slip.Commission)
	// No monthly input saved: every manual line falls back to zero.
	assert.True(t, slip.Total.Equal(d("45")), "total %s", slip.Total)
}

func TestComposeRuleComponentsAndAdjustments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.addUser(t)
	env.grantRule(userID,
		commissiondomain.SalaryComponent{
			Code: "base_salary", DisplayName: "Base", Kind: commissiondomain.ComponentKindFixed,
			DefaultValue: d("9000"), Currency: "CNY", Sign: 1,
		},
		commissiondomain.SalaryComponent{
			Code: "commission", DisplayName: "Commission", Kind: commissiondomain.ComponentKindCalculated,
			Currency: "CNY", Sign: 1,
		},
	)

	// A saved monthly row must not override a fixed component.
	_, err := env.svc.SaveMonthly(ctx, domain.SaveMonthlyRequest{
		UserID:     userID,
		Month:      "2025-06",
		BaseSalary: d("1"),
	})
	require.NoError(t, err)

	env.commission.payouts[payoutKey(userID, "2025-06")] = commissiondomain.PayoutRecord{
		UserID:             userID,
		Period:             "2025-06",
		NewOrderCommission: d("100"),
		Currency:           "CNY",
	}
	env.commission.adjustments[payoutKey(userID, "2025-06")] = []commissiondomain.Adjustment{
		{UserID: userID, Month: "2025-06", Amount: d("-20"), Currency: "CNY", Note: "clawback"},
	}

	slip, err := env.svc.Compose(ctx, domain.ComposeRequest{UserID: userID, Period: "2025-06"})
	require.NoError(t, err)
	require.Len(t, slip.Lines, 3)
	assert.Equal(t, "commission_adjustment", slip.Lines[2].Code)
	// 9000 + 100 - 20
	assert.True(t, slip.Total.Equal(d("9080")), "total %s", slip.Total)
}

func TestComposeConvertsToDisplayCurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.addUser(t)
	env.grantRule(userID)

	// 1 CNY = 0.14 USD.
	require.NoError(t, env.db.Exec(
		`INSERT INTO currencies (code, name, fixed_rate, status, updated_at) VALUES (?, ?, ?, 1, ?)`,
		"USD", "US Dollar", d("0.14"), time.Now().UTC(),
	).Error)

	_, err := env.svc.SaveMonthly(ctx, domain.SaveMonthlyRequest{
		UserID:     userID,
		Month:      "2025-06",
		BaseSalary: d("1000"),
	})
	require.NoError(t, err)
	env.commission.payouts[payoutKey(userID, "2025-06")] = commissiondomain.PayoutRecord{
		UserID:   userID,
		Period:   "2025-06",
		Currency: "CNY",
	}

	slip, err := env.svc.Compose(ctx, domain.ComposeRequest{
		UserID:          userID,
		Period:          "2025-06",
		DisplayCurrency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", slip.DisplayCurrency)
	assert.True(t, slip.Total.Equal(d("140")), "total %s", slip.Total)

	base := slip.Lines[0]
	assert.Equal(t, "base_salary", base.Code)
	assert.True(t, base.Amount.Equal(d("1000")))
	assert.Equal(t, "CNY", base.Currency)
	assert.True(t, base.Converted.Equal(d("140")), "converted %s", base.Converted)
}

func TestComposeBatchSkipsUsersWithoutRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	covered := env.addUser(t)
	uncovered := env.addUser(t)
	env.grantRule(covered)

	slips, err := env.svc.ComposeBatch(ctx, domain.ComposeBatchRequest{
		UserIDs: []snowflake.ID{covered, uncovered},
		Period:  "2025-06",
	})
	require.NoError(t, err)
	require.Len(t, slips, 1)
	assert.Equal(t, covered, slips[0].UserID)
}

func TestComposeInvalidPeriod(t *testing.T) {
	env := newTestEnv(t)
	userID := env.addUser(t)

	_, err := env.svc.Compose(context.Background(), domain.ComposeRequest{UserID: userID, Period: "06-2025"})
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)
}
