package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/authbridge/internal/bridge"
	"github.com/smallbiznis/authbridge/internal/clock"
	"github.com/smallbiznis/authbridge/internal/config"
	"github.com/smallbiznis/authbridge/internal/identity/stytch"
	"github.com/smallbiznis/authbridge/internal/migration"
	"github.com/smallbiznis/authbridge/internal/observability"
	"github.com/smallbiznis/authbridge/internal/organization"
	"github.com/smallbiznis/authbridge/internal/ratelimit"
	"github.com/smallbiznis/authbridge/internal/reconcile"
	"github.com/smallbiznis/authbridge/internal/server"
	"github.com/smallbiznis/authbridge/internal/session"
	"github.com/smallbiznis/authbridge/internal/user"
	"github.com/smallbiznis/authbridge/pkg/db"
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

		// Stores
		user.Module,
		organization.Module,
		session.Module,

		// Identity bridge
		stytch.Module,
		reconcile.Module,
		bridge.Module,

		ratelimit.Module,
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
