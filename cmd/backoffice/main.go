package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/migration"
	"github.com/smallbiznis/backoffice/internal/observability"
	"github.com/smallbiznis/backoffice/internal/scheduler"
	"github.com/smallbiznis/backoffice/internal/server"
	"github.com/smallbiznis/backoffice/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
