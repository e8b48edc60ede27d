package logger

import (
	"context"

	"github.com/smallbiznis/rentledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the process *zap.Logger tagged with service and env.
var Module = fx.Module("logger",
	fx.Provide(fromConfig),
)

func fromConfig(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	base, err := New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := base.With(
		zap.String("service", cfg.AppName),
		zap.String("version", cfg.AppVersion),
		zap.String("env", cfg.Environment),
	)
	lc.Append(fx.StopHook(func(context.Context) error {
		// stdout sync fails with EINVAL on some terminals
		_ = log.Sync()
		return nil
	}))
	return log, nil
}
