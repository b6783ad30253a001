package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	commissiondomain "github.com/smallbiznis/backoffice/internal/commission/domain"
	"github.com/smallbiznis/backoffice/internal/config"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
	directorydomain "github.com/smallbiznis/backoffice/internal/directory/domain"
	"github.com/smallbiznis/backoffice/internal/salary/domain"
	"github.com/smallbiznis/backoffice/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Engine     *config.EngineConfigHolder
	Repo       domain.Repository
	Commission commissiondomain.Service
	Currency   currencydomain.Service
	Directory  directorydomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	engine     *config.EngineConfigHolder
	repo       domain.Repository
	commission commissiondomain.Service
	currency   currencydomain.Service
	directory  directorydomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("salary.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		engine:     p.Engine,
		repo:       p.Repo,
		commission: p.Commission,
		currency:   p.Currency,
		directory:  p.Directory,
	}
}

func (s *Service) SaveMonthly(ctx context.Context, req domain.SaveMonthlyRequest) (domain.MonthlyInput, error) {
	if _, err := period.Parse(req.Month); err != nil {
		return domain.MonthlyInput{}, domain.ErrInvalidMonth
	}
	if _, err := s.directory.GetUser(ctx, req.UserID); err != nil {
		return domain.MonthlyInput{}, err
	}

	input := domain.MonthlyInput{
		ID:         s.genID.Generate(),
		UserID:     req.UserID,
		Month:      req.Month,
		BaseSalary: req.BaseSalary,
		Attendance: req.Attendance,
		Incentive:  req.Incentive,
		Adjustment: req.Adjustment,
		Deduction:  req.Deduction,
		CreatedAt:  s.clock.Now(),
		UpdatedAt:  s.clock.Now(),
	}
	if err := s.repo.UpsertMonthly(ctx, s.db, &input); err != nil {
		return domain.MonthlyInput{}, err
	}
	return input, nil
}

func (s *Service) Compose(ctx context.Context, req domain.ComposeRequest) (domain.Slip, error) {
	p, err := period.Parse(req.Period)
	if err != nil {
		return domain.Slip{}, domain.ErrInvalidMonth
	}

	engine := s.engine.Current()
	mode := req.RateMode
	if mode == "" {
		mode = currencydomain.RateModeFixed
	}
	if !mode.Valid() {
		return domain.Slip{}, currencydomain.ErrInvalidRateMode
	}
	displayCurrency := strings.ToUpper(strings.TrimSpace(req.DisplayCurrency))
	if displayCurrency == "" {
		displayCurrency = strings.ToUpper(engine.DisplayCurrency)
	}

	user, err := s.directory.GetUser(ctx, req.UserID)
	if err != nil {
		return domain.Slip{}, err
	}

	rule, err := s.commission.Resolve(ctx, user.ID, user.DepartmentID, p.End())
	if err != nil {
		return domain.Slip{}, err
	}

	monthly, err := s.repo.FindMonthly(ctx, s.db, user.ID, p.String())
	if err != nil {
		return domain.Slip{}, err
	}

	slip := domain.Slip{
		UserID:          user.ID,
		UserName:        user.Realname,
		Period:          p.String(),
		DisplayCurrency: displayCurrency,
	}

	components := rule.Components
	if len(components) == 0 {
		components = defaultComponents(engine.DisplayCurrency)
	}

	total := decimal.Zero
	for _, component := range components {
		amount := s.componentValue(component, monthly)
		line, err := s.buildLine(ctx, component, amount, displayCurrency, mode)
		if err != nil {
			return domain.Slip{}, err
		}
		if component.Kind == commissiondomain.ComponentKindCalculated {
			commissionLine, err := s.commissionLine(ctx, component, req, displayCurrency, mode)
			if err != nil {
				return domain.Slip{}, err
			}
			line = commissionLine
			slip.Commission = line.Converted
		}
		slip.Lines = append(slip.Lines, line)
		total = applySign(total, line)
	}

	adjustments, err := s.commission.ListAdjustments(ctx, user.ID, p.String())
	if err != nil {
		return domain.Slip{}, err
	}
	for _, adj := range adjustments {
		converted, err := s.currency.Convert(ctx, currencydomain.ConvertRequest{
			Amount: adj.Amount,
			From:   adj.Currency,
			To:     displayCurrency,
			Mode:   mode,
		})
		if err != nil {
			return domain.Slip{}, err
		}
		line := domain.SlipLine{
			Code:        "commission_adjustment",
			DisplayName: adj.Note,
			Kind:        commissiondomain.ComponentKindManual,
			Amount:      adj.Amount,
			Currency:    adj.Currency,
			Converted:   converted,
			Sign:        1,
		}
		if line.DisplayName == "" {
			line.DisplayName = "Commission adjustment"
		}
		slip.Lines = append(slip.Lines, line)
		total = total.Add(converted)
	}

	slip.Total = total.Round(engine.RoundingPlaces)
	return slip, nil
}

func (s *Service) ComposeBatch(ctx context.Context, req domain.ComposeBatchRequest) ([]domain.Slip, error) {
	userIDs := req.UserIDs
	if len(userIDs) == 0 {
		users, err := s.directory.ListActiveUsers(ctx, directorydomain.UserFilter{DepartmentID: req.DepartmentID})
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			userIDs = append(userIDs, user.ID)
		}
	}

	slips := make([]domain.Slip, 0, len(userIDs))
	for _, userID := range userIDs {
		slip, err := s.Compose(ctx, domain.ComposeRequest{
			UserID:          userID,
			Period:          req.Period,
			DisplayCurrency: req.DisplayCurrency,
			RateMode:        req.RateMode,
		})
		if err != nil {
			if errors.Is(err, commissiondomain.ErrNoApplicableRule) {
				s.log.Warn("skipping slip without applicable rule",
					zap.Int64("user_id", int64(userID)),
					zap.String("period", req.Period),
				)
				continue
			}
			return nil, err
		}
		slips = append(slips, slip)
	}
	return slips, nil
}

// componentValue picks the line's source value: fixed components always
// use the configured default, manual ones read the monthly input and
// fall back to the default when no row was saved.
func (s *Service) componentValue(component commissiondomain.SalaryComponent, monthly *domain.MonthlyInput) decimal.Decimal {
	if component.Kind == commissiondomain.ComponentKindFixed || monthly == nil {
		return component.DefaultValue
	}
	switch component.Code {
	case "base_salary":
		return monthly.BaseSalary
	case "attendance":
		return monthly.Attendance
	case "incentive":
		return monthly.Incentive
	case "adjustment":
		return monthly.Adjustment
	case "deduction":
		return monthly.Deduction
	default:
		return component.DefaultValue
	}
}

func (s *Service) buildLine(ctx context.Context, component commissiondomain.SalaryComponent, amount decimal.Decimal, displayCurrency string, mode currencydomain.RateMode) (domain.SlipLine, error) {
	currency := component.Currency
	if currency == "" {
		currency = strings.ToUpper(s.engine.Current().BaseCurrency)
	}
	converted, err := s.currency.Convert(ctx, currencydomain.ConvertRequest{
		Amount: amount,
		From:   currency,
		To:     displayCurrency,
		Mode:   mode,
	})
	if err != nil {
		return domain.SlipLine{}, err
	}
	return domain.SlipLine{
		Code:        component.Code,
		DisplayName: component.DisplayName,
		Kind:        component.Kind,
		Amount:      amount,
		Currency:    currency,
		Converted:   converted,
		Sign:        component.Sign,
	}, nil
}

// commissionLine values the calculated component from the period's
// payout record, computing it on demand when no record exists yet.
func (s *Service) commissionLine(ctx context.Context, component commissiondomain.SalaryComponent, req domain.ComposeRequest, displayCurrency string, mode currencydomain.RateMode) (domain.SlipLine, error) {
	payout, err := s.commission.GetPayout(ctx, req.UserID, req.Period)
	if errors.Is(err, commissiondomain.ErrPayoutNotFound) {
		payout, err = s.commission.Calculate(ctx, commissiondomain.CalculateRequest{
			UserID:          req.UserID,
			Period:          req.Period,
			DisplayCurrency: displayCurrency,
			RateMode:        mode,
		})
	}
	if err != nil {
		return domain.SlipLine{}, err
	}

	converted, err := s.currency.Convert(ctx, currencydomain.ConvertRequest{
		Amount: payout.Total(),
		From:   payout.Currency,
		To:     displayCurrency,
		Mode:   mode,
	})
	if err != nil {
		return domain.SlipLine{}, err
	}
	return domain.SlipLine{
		Code:        component.Code,
		DisplayName: component.DisplayName,
		Kind:        component.Kind,
		Amount:      payout.Total(),
		Currency:    payout.Currency,
		Converted:   converted,
		Sign:        component.Sign,
	}, nil
}

func applySign(total decimal.Decimal, line domain.SlipLine) decimal.Decimal {
	if line.Sign < 0 {
		return total.Sub(line.Converted)
	}
	return total.Add(line.Converted)
}

func defaultComponents(currency string) []commissiondomain.SalaryComponent {
	currency = strings.ToUpper(currency)
	return []commissiondomain.SalaryComponent{
		{Code: "base_salary", DisplayName: "Base salary", Kind: commissiondomain.ComponentKindManual, Currency: currency, Sign: 1, SortOrder: 0},
		{Code: "attendance", DisplayName: "Attendance", Kind: commissiondomain.ComponentKindManual, Currency: currency, Sign: 1, SortOrder: 1},
		{Code: "incentive", DisplayName: "Incentive", Kind: commissiondomain.ComponentKindManual, Currency: currency, Sign: 1, SortOrder: 2},
		{Code: "commission", DisplayName: "Commission", Kind: commissiondomain.ComponentKindCalculated, Currency: currency, Sign: 1, SortOrder: 3},
		{Code: "adjustment", DisplayName: "Adjustment", Kind: commissiondomain.ComponentKindManual, Currency: currency, Sign: 1, SortOrder: 4},
		{Code: "deduction", DisplayName: "Deduction", Kind: commissiondomain.ComponentKindManual, Currency: currency, Sign: -1, SortOrder: 5},
	}
}
