package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/skybook/internal/monitoring"
	"github.com/charlesng35/skybook/pkg/logger"
)

const (
	// SnapshotRetentionJob is the job name reported to monitoring.
	SnapshotRetentionJob = "price_snapshot_retention"

	defaultRetentionDays = 180
	defaultSchedule      = "@daily"
)

// SnapshotPruner removes price snapshots observed before cutoff.
type SnapshotPruner interface {
	PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner schedules the retention jobs that keep the snapshot table bounded.
type Cleaner struct {
	pruner    SnapshotPruner
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int
	schedule  string

	mu      sync.Mutex
	started bool
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cutoff computation.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRetentionDays adjusts how long price snapshots are kept.
func WithRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSchedule overrides the cron expression of the retention job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithLogger sets the cleaner logger.
func WithLogger(log *zap.Logger) Option {
	return func(cleaner *Cleaner) {
		if log != nil {
			cleaner.log = log
		}
	}
}

// NewCleaner constructs a Cleaner. A nil pruner disables every job.
func NewCleaner(pruner SnapshotPruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		pruner:    pruner,
		now:       time.Now,
		retention: defaultRetentionDays,
		schedule:  defaultSchedule,
		log:       logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Start registers the retention job and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.pruner == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if _, err := c.pruneSnapshots(context.Background()); err != nil {
			c.log.Warn("snapshot retention failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", SnapshotRetentionJob, err)
	}

	c.cron.Start()
	c.started = true
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially. It runs during graceful
// shutdown so a long-lived process does not skip its last retention pass.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.pruner == nil {
		return nil
	}

	var errs error
	if _, err := c.pruneSnapshots(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (c *Cleaner) pruneSnapshots(ctx context.Context) (int64, error) {
	if c.pruner == nil {
		return 0, errors.New("snapshot retention: pruner is required")
	}
	started := time.Now()
	cutoff := c.now().UTC().AddDate(0, 0, -c.retention)

	removed, err := c.pruner.PruneSnapshots(ctx, cutoff)
	elapsed := time.Since(started)
	if err != nil {
		monitoring.RecordMaintenanceRun(SnapshotRetentionJob, "failure", err.Error(), elapsed)
		return 0, fmt.Errorf("snapshot retention: %w", err)
	}

	monitoring.RecordMaintenanceRun(SnapshotRetentionJob, "success", "", elapsed)
	c.log.Info("snapshot retention completed",
		zap.Int64("removed", removed),
		zap.Time("cutoff", cutoff),
		zap.Duration("elapsed", elapsed),
	)
	return removed, nil
}
