package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/generation"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/latefee"
	obsmetrics "github.com/smallbiznis/rentledger/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubLateFees struct {
	result latefee.Result
	err    error
	calls  int
}

func (s *stubLateFees) Run(ctx context.Context) (latefee.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubGenerator struct {
	result generation.Result
	err    error
}

func (s *stubGenerator) GenerateMonthly(ctx context.Context) (generation.Result, error) {
	return s.result, s.err
}

type stubLocker struct {
	mu       sync.Mutex
	held     map[string]string
	released []string
	err      error
}

func (l *stubLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if l.held == nil {
		l.held = map[string]string{}
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.held[key] = "token-" + key
	return l.held[key], true, nil
}

func (l *stubLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.released = append(l.released, key)
	}
	return nil
}

type recordingNotifier struct {
	created []invoicedomain.Invoice
	fees    []invoicedomain.Invoice
}

func (n *recordingNotifier) InvoiceCreated(ctx context.Context, invoice invoicedomain.Invoice) {
	n.created = append(n.created, invoice)
}

func (n *recordingNotifier) LateFeeApplied(ctx context.Context, invoice invoicedomain.Invoice) {
	n.fees = append(n.fees, invoice)
}

func newTestScheduler(t *testing.T, log *zap.Logger) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return &Scheduler{
		log:        log,
		cfg:        DefaultConfig(),
		genID:      node,
		clock:      clock.NewFakeClock(time.Date(2024, time.February, 8, 1, 0, 0, 0, time.UTC)),
		lateFees:   &stubLateFees{},
		generation: &stubGenerator{},
	}
}

func useTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "rentledger",
		Environment: "test",
	})
	return registry
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := useTestRegistry(t)

	s := newTestScheduler(t, zap.NewNop())
	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	labels := map[string]string{
		"service": "rentledger",
		"env":     "test",
		"job":     "timeout_job",
	}
	assert.Equal(t, float64(1), getCounterValue(t, registry, "rentledger_scheduler_job_timeouts_total", labels))

	errorLabels := map[string]string{
		"service": "rentledger",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	assert.Equal(t, float64(1), getCounterValue(t, registry, "rentledger_scheduler_job_errors_total", errorLabels))
}

func TestRunJobRecoversPanic(t *testing.T) {
	useTestRegistry(t)

	s := newTestScheduler(t, zap.NewNop())
	err := s.runJob(context.Background(), "panicky", time.Second, func(ctx context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestRunLateFeesLogsAndNotifies(t *testing.T) {
	useTestRegistry(t)
	core, logs := observer.New(zap.InfoLevel)

	s := newTestScheduler(t, zap.New(core))
	applied := []invoicedomain.Invoice{{ID: 1, BillingPeriod: "2024-01"}, {ID: 2, BillingPeriod: "2024-01"}}
	s.lateFees = &stubLateFees{result: latefee.Result{Promoted: 2, FeesApplied: 2, Failed: 1, Applied: applied}}
	notifier := &recordingNotifier{}
	s.notifier = notifier

	result, err := s.RunLateFees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.FeesApplied)
	assert.Len(t, notifier.fees, 2)

	require.Equal(t, 1, logs.FilterMessage("scheduler.job.start").Len())
	finish := logs.FilterMessage("scheduler.job.finish").All()
	require.Len(t, finish, 1)
	fields := finish[0].ContextMap()
	assert.Equal(t, JobLateFees, fields["job"])
	assert.EqualValues(t, 2, fields["promoted"])
	assert.EqualValues(t, 2, fields["fees_applied"])
	assert.EqualValues(t, 1, fields["failed"])
	assert.Equal(t, zap.WarnLevel, finish[0].Level)
	assert.NotEmpty(t, fields["run_id"])
}

func TestRunLateFeesPropagatesFailure(t *testing.T) {
	useTestRegistry(t)

	s := newTestScheduler(t, zap.NewNop())
	s.lateFees = &stubLateFees{err: latefee.ErrInvalidAmount}
	notifier := &recordingNotifier{}
	s.notifier = notifier

	_, err := s.RunLateFees(context.Background())
	assert.ErrorIs(t, err, latefee.ErrInvalidAmount)
	assert.Empty(t, notifier.fees)
}

func TestRunGenerateInvoicesNotifiesCreated(t *testing.T) {
	useTestRegistry(t)

	s := newTestScheduler(t, zap.NewNop())
	s.generation = &stubGenerator{result: generation.Result{
		Period:   "2024-02",
		Created:  1,
		Skipped:  3,
		Invoices: []invoicedomain.Invoice{{ID: 9, BillingPeriod: "2024-02"}},
	}}
	notifier := &recordingNotifier{}
	s.notifier = notifier

	result, err := s.RunGenerateInvoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-02", result.Period)
	require.Len(t, notifier.created, 1)
	assert.Equal(t, "2024-02", notifier.created[0].BillingPeriod)
}

func TestJobLockHeldSkipsRun(t *testing.T) {
	registry := useTestRegistry(t)

	s := newTestScheduler(t, zap.NewNop())
	runner := &stubLateFees{}
	s.lateFees = runner
	locker := &stubLocker{held: map[string]string{jobLockKey(JobLateFees): "other-replica"}}
	s.locker = locker

	_, err := s.RunLateFees(context.Background())
	assert.ErrorIs(t, err, ErrJobInProgress)
	assert.Zero(t, runner.calls)

	labels := map[string]string{
		"service": "rentledger",
		"env":     "test",
		"job":     JobLateFees,
		"reason":  obsmetrics.SchedulerSkipReasonLockHeld,
	}
	assert.Equal(t, float64(1), getCounterValue(t, registry, "rentledger_scheduler_job_skipped_total", labels))
}

func TestJobLockReleasedAfterRun(t *testing.T) {
	useTestRegistry(t)

	s := newTestScheduler(t, zap.NewNop())
	locker := &stubLocker{}
	s.locker = locker

	_, err := s.RunLateFees(context.Background())
	require.NoError(t, err)
	_, err = s.RunLateFees(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{jobLockKey(JobLateFees), jobLockKey(JobLateFees)}, locker.released)
	assert.Empty(t, locker.held)
}

func TestJobLockErrorFailsRun(t *testing.T) {
	useTestRegistry(t)

	s := newTestScheduler(t, zap.NewNop())
	s.locker = &stubLocker{err: errors.New("redis unavailable")}

	_, err := s.RunGenerateInvoices(context.Background())
	assert.Error(t, err)
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := newTestScheduler(t, zap.NewNop())
	s.cfg.LateFeeSpec = "not a cron spec"

	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := newTestScheduler(t, zap.NewNop())

	require.NoError(t, s.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{JobTimeout: 20 * time.Minute}.withDefaults()
	assert.Equal(t, "0 1 * * *", cfg.LateFeeSpec)
	assert.Equal(t, "0 0 1 * *", cfg.GenerateSpec)
	assert.Greater(t, cfg.LockTTL, cfg.JobTimeout)
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
