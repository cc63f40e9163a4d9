// Package scheduler runs the periodic maintenance jobs: aggregate
// reconciliation, outbox relay and expired-key cleanup.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"lotcost/internal/domain/costing"
	"lotcost/pkg/logger"
)

const jobTimeout = 2 * time.Minute

// Reconciler resyncs all materials; *costing.Engine satisfies it.
type Reconciler interface {
	ResyncAll(ctx context.Context) (costing.ReconcileReport, error)
}

// Outbox relays journal events; *postgres.OutboxRelay satisfies it.
type Outbox interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
	PurgePublished(ctx context.Context, retention time.Duration) (int64, error)
}

// Cleaner removes expired records; idempotency stores satisfy it.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// StatsLogger reports connection pool usage; *postgres.Pool satisfies it.
type StatsLogger interface {
	LogStats(ctx context.Context)
}

// Options holds cron specs. An empty spec disables the job.
type Options struct {
	ReconcileSpec   string
	OutboxSpec      string
	OutboxRetention time.Duration
	CleanupSpec     string
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron       *cron.Cron
	opts       Options
	log        *logger.Logger
	reconciler Reconciler
	outbox     Outbox
	cleaner    Cleaner
	stats      StatsLogger
}

// New creates a scheduler. outbox, cleaner and stats may be nil.
func New(opts Options, log *logger.Logger, reconciler Reconciler, outbox Outbox, cleaner Cleaner, stats StatsLogger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("scheduler")
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{log}))),
		opts:       opts,
		log:        log,
		reconciler: reconciler,
		outbox:     outbox,
		cleaner:    cleaner,
		stats:      stats,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context)
		on   bool
	}{
		{"reconcile", s.opts.ReconcileSpec, s.Reconcile, s.reconciler != nil},
		{"outbox", s.opts.OutboxSpec, s.RelayOutbox, s.outbox != nil},
		{"cleanup", s.opts.CleanupSpec, s.Cleanup, true},
	}

	for _, job := range jobs {
		if job.spec == "" || !job.on {
			continue
		}
		run := job.run
		name := job.name
		if _, err := s.cron.AddFunc(job.spec, func() { s.runJob(name, run) }); err != nil {
			return fmt.Errorf("schedule %s job %q: %w", name, job.spec, err)
		}
		s.log.Infow("job scheduled", "job", name, "spec", job.spec)
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	s.log.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runJob(name string, run func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	ctx = logger.WithLogger(ctx, s.log.With("job", name))
	run(ctx)
}

// Reconcile resyncs every material and logs the drift found.
func (s *Scheduler) Reconcile(ctx context.Context) {
	report, err := s.reconciler.ResyncAll(ctx)
	if err != nil {
		logger.Error(ctx, "reconciliation finished with errors",
			"checked", report.Checked, "failed", report.Failed, "error", err)
		return
	}
	logger.Info(ctx, "reconciliation finished",
		"checked", report.Checked, "drifted", report.Drifted)
}

// RelayOutbox publishes one batch of pending events, parks failed ones and
// purges old published ones.
func (s *Scheduler) RelayOutbox(ctx context.Context) {
	published, err := s.outbox.ProcessBatch(ctx)
	if err != nil {
		logger.Error(ctx, "outbox batch failed", "error", err)
		return
	}
	if published > 0 {
		logger.Debug(ctx, "outbox batch published", "count", published)
	}

	moved, err := s.outbox.MoveToDLQ(ctx)
	if err != nil {
		logger.Error(ctx, "outbox DLQ move failed", "error", err)
	} else if moved > 0 {
		logger.Warn(ctx, "outbox messages moved to DLQ", "count", moved)
	}

	if s.opts.OutboxRetention > 0 {
		if _, err := s.outbox.PurgePublished(ctx, s.opts.OutboxRetention); err != nil {
			logger.Error(ctx, "outbox purge failed", "error", err)
		}
	}
}

// Cleanup drops expired idempotency keys and logs pool stats.
func (s *Scheduler) Cleanup(ctx context.Context) {
	if s.cleaner != nil {
		n, err := s.cleaner.CleanupExpired(ctx)
		if err != nil {
			logger.Error(ctx, "idempotency cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info(ctx, "cleaned up idempotency keys", "count", n)
		}
	}
	if s.stats != nil {
		s.stats.LogStats(ctx)
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
