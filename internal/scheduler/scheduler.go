package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/backoffice/internal/clock"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

// Config controls job intervals and timeouts.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		JobTimeout:  5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	ContractSvc contractdomain.Service
	Config      Config `optional:"true"`
}

// Scheduler runs the housekeeping jobs that keep installment statuses
// current between API calls.
type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	contractSvc contractdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.ContractSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		contractSvc: p.ContractSvc,
	}, nil
}

// RunForever ticks until ctx is cancelled. An immediate first run keeps
// statuses fresh after a restart.
func (s *Scheduler) RunForever(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	now := s.clock.Now()
	marked, err := s.contractSvc.MarkOverdue(ctx, now)
	if err != nil {
		s.log.Error("mark overdue failed", zap.Error(err))
		return
	}
	if marked > 0 {
		s.log.Info("installments marked overdue",
			zap.Int64("count", marked),
			zap.Time("as_of", now),
		)
	}
}
