package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"ecostay/internal/app/ledger"
)

type Reconciler interface {
	ReconcilePendingPayouts(ctx context.Context, olderThan time.Duration) (ledger.ReconcileReport, error)
}

type Config struct {
	// ReconcileSpec is a six-field cron expression, seconds first.
	ReconcileSpec string
	// PendingAge is how long a payout must have been pending before a sweep
	// re-drives it.
	PendingAge time.Duration
	// RunTimeout bounds a single sweep.
	RunTimeout time.Duration
}

// Scheduler runs the periodic payout reconciliation. Overlapping sweeps are
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	ledger Reconciler
	cfg    Config
	logger *slog.Logger
}

func New(rec Reconciler, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PendingAge <= 0 {
		cfg.PendingAge = 5 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = time.Minute
	}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, ctx: ctx, cancel: cancel, ledger: rec, cfg: cfg, logger: logger}
	if _, err := c.AddFunc(cfg.ReconcileSpec, s.ReconcileOnce); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// ReconcileOnce runs a single sweep using the scheduler's own context.
func (s *Scheduler) ReconcileOnce() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RunTimeout)
	defer cancel()
	started := time.Now()
	report, err := s.ledger.ReconcilePendingPayouts(ctx, s.cfg.PendingAge)
	if err != nil {
		s.logger.Error("payout reconciliation failed", "error", err)
		return
	}
	s.logger.Debug("payout reconciliation tick", "scanned", report.Scanned, "elapsed", time.Since(started))
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", "reconcile", s.cfg.ReconcileSpec)
	s.cron.Start()
}

// Stop cancels running sweeps and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
