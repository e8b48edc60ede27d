package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	"github.com/smallbiznis/rentledger/internal/credit"
	"github.com/smallbiznis/rentledger/internal/expense"
	"github.com/smallbiznis/rentledger/internal/generation"
	"github.com/smallbiznis/rentledger/internal/invoice"
	"github.com/smallbiznis/rentledger/internal/latefee"
	"github.com/smallbiznis/rentledger/internal/lock"
	"github.com/smallbiznis/rentledger/internal/logger"
	"github.com/smallbiznis/rentledger/internal/migration"
	"github.com/smallbiznis/rentledger/internal/notification"
	"github.com/smallbiznis/rentledger/internal/observability"
	"github.com/smallbiznis/rentledger/internal/payment"
	"github.com/smallbiznis/rentledger/internal/property"
	"github.com/smallbiznis/rentledger/internal/providers"
	"github.com/smallbiznis/rentledger/internal/report"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	"github.com/smallbiznis/rentledger/internal/settings"
	"github.com/smallbiznis/rentledger/internal/tenant"
	"github.com/smallbiznis/rentledger/pkg/db"
	"go.uber.org/fx"
)

// infrastructure is what every command needs to reach the database.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		logger.Module,
		fx.Provide(newSnowflakeNode),
		clock.Module,
		db.Module,
	)
}

// ledger wires the domain services, collaborators and the job runner on
// top of a migrated database.
func ledger() fx.Option {
	return fx.Options(
		infrastructure(),
		migration.Module,
		observability.Module,
		lock.Module,
		providers.Module,

		property.Module,
		tenant.Module,
		invoice.Module,
		credit.Module,
		payment.Module,
		expense.Module,
		settings.Module,
		latefee.Module,
		generation.Module,
		report.Module,
		notification.Module,
		scheduler.Module,
	)
}

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
