package scheduler

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the Scheduler for on-demand runs (HTTP, CLI).
var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
)

// CronModule additionally starts the cron triggers with the app lifecycle.
var CronModule = fx.Module("scheduler.cron",
	fx.Invoke(Register),
)

func Register(lc fx.Lifecycle, cfg Config, sched *Scheduler) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sched.Start()
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
}
