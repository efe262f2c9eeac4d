package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/arbor/pkg/telemetry/metrics"

	"github.com/robfig/cron/v3"
)

// Retention prunes records older than a number of days, on demand or on a
// cron schedule.
type Retention struct {
	store    Store
	days     int
	schedule string
	metrics  *metrics.Collector
	now      func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	logger  *slog.Logger
}

// NewRetention creates a retention pruner for store. days <= 0 keeps
// records forever. schedule is a standard five-field cron expression; an
// empty schedule disables Start.
func NewRetention(store Store, days int, schedule string, m *metrics.Collector) *Retention {
	return &Retention{
		store:    store,
		days:     days,
		schedule: schedule,
		metrics:  m,
		now:      time.Now,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "journal.retention"),
	}
}

// Cutoff returns the time before which records are pruned. The zero time
// means nothing is pruned.
func (r *Retention) Cutoff() time.Time {
	if r.days <= 0 {
		return time.Time{}
	}
	return r.now().AddDate(0, 0, -r.days)
}

// RunNow prunes once and returns the number of deleted records.
func (r *Retention) RunNow(ctx context.Context) (int64, error) {
	cutoff := r.Cutoff()
	if cutoff.IsZero() {
		return 0, nil
	}

	deleted, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	r.metrics.RecordJournalPruned(deleted)

	if deleted > 0 {
		r.logger.Info("journal pruned",
			"deleted_count", deleted,
			"cutoff", cutoff,
		)
	}
	return deleted, nil
}

// Start schedules pruning until ctx is done or Stop is called.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" || r.days <= 0 {
		r.logger.Debug("journal retention not scheduled")
		return nil
	}
	if r.running {
		return nil
	}

	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.schedule, err)
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.RunNow(ctx); err != nil {
			r.logger.Error("scheduled journal pruning failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	r.cron.Start()
	r.running = true

	r.logger.Info("journal retention started",
		"schedule", r.schedule,
		"retention_days", r.days,
	)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

// Stop stops the schedule and waits for a running prune to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("journal retention stopped")
}

// IsRunning reports whether the schedule is active.
func (r *Retention) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.running
}

// NextRun returns the next scheduled prune, or nil when not scheduled.
func (r *Retention) NextRun() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
