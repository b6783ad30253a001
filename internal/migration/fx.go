package migration

import (
	"github.com/smallbiznis/backoffice/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Schema migrations are postgres-only; sqlite environments (tests,
		// local scratch DBs) migrate via AutoMigrate in their own setup.
		if cfg.DBType != "postgres" {
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		return RunMigrations(sqlDB)
	}),
)
