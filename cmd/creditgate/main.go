package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditgate/internal/account"
	"github.com/smallbiznis/creditgate/internal/campaign"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/internal/credit"
	"github.com/smallbiznis/creditgate/internal/document"
	"github.com/smallbiznis/creditgate/internal/lock"
	"github.com/smallbiznis/creditgate/internal/logger"
	"github.com/smallbiznis/creditgate/internal/migration"
	"github.com/smallbiznis/creditgate/internal/observability"
	"github.com/smallbiznis/creditgate/internal/payment"
	"github.com/smallbiznis/creditgate/internal/ratelimit"
	"github.com/smallbiznis/creditgate/internal/recurring"
	"github.com/smallbiznis/creditgate/internal/scheduler"
	"github.com/smallbiznis/creditgate/internal/server"
	"github.com/smallbiznis/creditgate/internal/topup"
	"github.com/smallbiznis/creditgate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		lock.Module,
		ratelimit.Module,

		// Functional Domains
		document.Module,
		account.Module,
		campaign.Module,
		payment.Module,
		credit.Module,
		topup.Module,
		recurring.Module,

		// Callers
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
