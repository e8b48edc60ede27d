package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/generation"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/latefee"
	"github.com/smallbiznis/rentledger/internal/lock"
	"github.com/smallbiznis/rentledger/internal/notification"
	obsmetrics "github.com/smallbiznis/rentledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobLateFees         = "late_fees"
	JobGenerateInvoices = "generate_invoices"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Notifier receives the invoices a job touched once the job has committed.
type Notifier interface {
	InvoiceCreated(ctx context.Context, invoice invoicedomain.Invoice)
	LateFeeApplied(ctx context.Context, invoice invoicedomain.Invoice)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	LateFees   *latefee.Service
	Generation *generation.Service
	Notifier   *notification.Service `optional:"true"`
	Locker     *lock.Locker          `optional:"true"`
	Config     Config                `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	lateFees   lateFeeRunner
	generation invoiceGenerator
	notifier   Notifier
	locker     JobLocker

	cron *cron.Cron
}

type lateFeeRunner interface {
	Run(ctx context.Context) (latefee.Result, error)
}

type invoiceGenerator interface {
	GenerateMonthly(ctx context.Context) (generation.Result, error)
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.LateFees == nil || p.Generation == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		lateFees:   p.LateFees,
		generation: p.Generation,
		locker:     lockerFrom(p.Locker),
	}
	if p.Notifier != nil {
		s.notifier = p.Notifier
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startRun(ctx, name)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.withJobLock(ctx, name, func(ctx context.Context) error {
		return recoverJob(ctx, name, fn)
	})
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	s.finishRun(ctx, run, err)
	if err == nil || errors.Is(err, ErrJobInProgress) {
		return err
	}

	// deadline is a soft timeout: items committed so far stay committed
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunLateFees runs the late-fee batch once and notifies affected tenants.
func (s *Scheduler) RunLateFees(ctx context.Context) (latefee.Result, error) {
	var result latefee.Result
	err := s.runJob(ctx, JobLateFees, s.cfg.JobTimeout, func(ctx context.Context) error {
		var err error
		result, err = s.lateFees.Run(ctx)
		if err != nil {
			return err
		}
		run := runFromContext(ctx)
		run.record("promoted", result.Promoted)
		run.record("fees_applied", result.FeesApplied)
		run.record("failed", result.Failed)
		obsmetrics.Scheduler().AddBatchProcessed(JobLateFees, "invoice", result.FeesApplied)
		return nil
	})
	if err != nil {
		return result, err
	}
	if s.notifier != nil {
		for _, invoice := range result.Applied {
			s.notifier.LateFeeApplied(ctx, invoice)
		}
	}
	return result, nil
}

// RunGenerateInvoices runs monthly generation once and sends the new invoices.
func (s *Scheduler) RunGenerateInvoices(ctx context.Context) (generation.Result, error) {
	var result generation.Result
	err := s.runJob(ctx, JobGenerateInvoices, s.cfg.JobTimeout, func(ctx context.Context) error {
		var err error
		result, err = s.generation.GenerateMonthly(ctx)
		if err != nil {
			return err
		}
		run := runFromContext(ctx)
		run.record("created", result.Created)
		run.record("skipped", result.Skipped)
		run.record("failed", result.Failed)
		obsmetrics.Scheduler().AddBatchProcessed(JobGenerateInvoices, "invoice", result.Created)
		return nil
	})
	if err != nil {
		return result, err
	}
	if s.notifier != nil {
		for _, invoice := range result.Invoices {
			s.notifier.InvoiceCreated(ctx, invoice)
		}
	}
	return result, nil
}

// Start registers the cron triggers and starts the cron loop.
func (s *Scheduler) Start() error {
	logger := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.cfg.LateFeeSpec, func() {
		if _, err := s.RunLateFees(context.Background()); err != nil && !errors.Is(err, ErrJobInProgress) {
			s.log.Warn("scheduler run failed", zap.String("job", JobLateFees), zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("late fee schedule %q: %w", s.cfg.LateFeeSpec, err)
	}
	if _, err := c.AddFunc(s.cfg.GenerateSpec, func() {
		if _, err := s.RunGenerateInvoices(context.Background()); err != nil && !errors.Is(err, ErrJobInProgress) {
			s.log.Warn("scheduler run failed", zap.String("job", JobGenerateInvoices), zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("generation schedule %q: %w", s.cfg.GenerateSpec, err)
	}

	s.cron = c
	c.Start()
	s.log.Info("scheduler started",
		zap.String("late_fee_spec", s.cfg.LateFeeSpec),
		zap.String("generate_spec", s.cfg.GenerateSpec),
	)
	return nil
}

// Stop halts the cron loop and waits for running jobs to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
