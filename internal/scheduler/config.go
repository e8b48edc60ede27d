package scheduler

import (
	"time"

	"github.com/smallbiznis/rentledger/internal/config"
)

// Config controls cron triggers and per-job limits.
type Config struct {
	Enabled      bool
	LateFeeSpec  string
	GenerateSpec string
	JobTimeout   time.Duration
	// LockTTL bounds how long a crashed replica can hold a job lock.
	LockTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		LateFeeSpec:  "0 1 * * *",
		GenerateSpec: "0 0 1 * *",
		JobTimeout:   5 * time.Minute,
		LockTTL:      10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:      cfg.Scheduler.Enabled,
		LateFeeSpec:  cfg.Scheduler.LateFeeSpec,
		GenerateSpec: cfg.Scheduler.GenerateSpec,
		JobTimeout:   time.Duration(cfg.Scheduler.JobTimeoutSeconds) * time.Second,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.LateFeeSpec == "" {
		c.LateFeeSpec = defaults.LateFeeSpec
	}
	if c.GenerateSpec == "" {
		c.GenerateSpec = defaults.GenerateSpec
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout + time.Minute
	}
	return c
}
