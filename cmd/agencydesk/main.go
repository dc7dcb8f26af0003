package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/agencydesk/internal/clock"
	"github.com/smallbiznis/agencydesk/internal/config"
	"github.com/smallbiznis/agencydesk/internal/migration"
	"github.com/smallbiznis/agencydesk/internal/observability"
	"github.com/smallbiznis/agencydesk/internal/server"
	"github.com/smallbiznis/agencydesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain modules and the HTTP surface
		server.Module,
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
