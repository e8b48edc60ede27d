package scheduler

import (
	"context"
	"sort"
	"time"

	obscontext "github.com/smallbiznis/rentledger/internal/observability/context"
	obslogger "github.com/smallbiznis/rentledger/internal/observability/logger"
	"go.uber.org/zap"
)

// jobRun collects the outcome counters of one job execution for the
// "scheduler.job.finish" line.
type jobRun struct {
	job       string
	runID     string
	startedAt time.Time
	counts    map[string]int
	failed    int
}

type jobRunKey struct{}

func (r *jobRun) record(outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	if outcome == "failed" {
		r.failed += n
		return
	}
	r.counts[outcome] += n
}

func (s *Scheduler) startRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
		counts:    map[string]int{},
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
	)
	return ctx, run
}

func runFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) finishRun(ctx context.Context, run *jobRun, err error) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
	}
	outcomes := make([]string, 0, len(run.counts))
	for outcome := range run.counts {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fields = append(fields, zap.Int(outcome, run.counts[outcome]))
	}
	fields = append(fields, zap.Int("failed", run.failed))

	log := s.logger(ctx)
	switch {
	case err != nil:
		log.Warn("scheduler.job.finish", append(fields, zap.Error(err))...)
	case run.failed > 0:
		log.Warn("scheduler.job.finish", fields...)
	default:
		log.Info("scheduler.job.finish", fields...)
	}
}
