package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/rentledger/internal/lock"
	obsmetrics "github.com/smallbiznis/rentledger/internal/observability/metrics"
	"go.uber.org/zap"
)

// ErrJobInProgress is returned when another replica holds the job lock.
var ErrJobInProgress = errors.New("job_in_progress")

// JobLocker is the subset of lock.Locker the scheduler needs.
type JobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

func lockerFrom(l *lock.Locker) JobLocker {
	if !l.Enabled() {
		return nil
	}
	return l
}

func jobLockKey(job string) string {
	return "rentledger:scheduler:" + job
}

// withJobLock runs fn while holding the cluster-wide lock for job. Without
// a locker every replica may run the job; the ledger stays correct because
// late fees and generation are idempotent, only the work is duplicated.
func (s *Scheduler) withJobLock(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	key := jobLockKey(job)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", job, err)
	}
	if !ok {
		obsmetrics.Scheduler().IncJobSkipped(job, obsmetrics.SchedulerSkipReasonLockHeld)
		s.logger(ctx).Info("scheduler.job.skipped",
			zap.String("job", job),
			zap.String("reason", obsmetrics.SchedulerSkipReasonLockHeld),
		)
		return ErrJobInProgress
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("scheduler.lock.release_failed", zap.String("job", job), zap.Error(err))
		}
	}()

	return fn(ctx)
}
