package maintenance

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/craftboard/platform/internal/database"
	"github.com/craftboard/platform/internal/store"
)

// Runner periodically recomputes denormalized counters and rotates audit
// partitions. Failures are logged and retried on the next tick; the stored
// counters converge because every recount derives from source rows.
type Runner struct {
	db              *sql.DB
	counters        store.CounterStore
	interval        time.Duration
	retentionMonths int
}

// NewRunner creates a Runner. interval governs both the counter sweep and
// the partition check.
func NewRunner(db *sql.DB, counters store.CounterStore, interval time.Duration, retentionMonths int) *Runner {
	return &Runner{db: db, counters: counters, interval: interval, retentionMonths: retentionMonths}
}

// Run blocks until ctx is cancelled, performing one pass immediately and
// then one per interval.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

// RunOnce performs a single maintenance pass. Used by the CLI sweep command.
func (r *Runner) RunOnce(ctx context.Context) error {
	if err := database.MaintainAuditPartitions(ctx, r.db, time.Now().UTC(), r.retentionMonths); err != nil {
		return err
	}
	return r.counters.SweepCounters(ctx)
}

func (r *Runner) pass(ctx context.Context) {
	start := time.Now()
	if err := database.MaintainAuditPartitions(ctx, r.db, time.Now().UTC(), r.retentionMonths); err != nil {
		slog.Error("audit partition maintenance failed", "error", err)
	}
	if err := r.counters.SweepCounters(ctx); err != nil {
		slog.Error("counter sweep failed", "error", err)
	}
	slog.Info("maintenance pass complete", "duration", time.Since(start).String())
}
