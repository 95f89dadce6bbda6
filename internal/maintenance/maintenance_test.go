package maintenance_test

import (
	"context"
	"testing"

	"github.com/craftboard/platform/internal/database"
	"github.com/craftboard/platform/internal/maintenance"
	"github.com/craftboard/platform/internal/seed"
	"github.com/craftboard/platform/internal/store"
	"github.com/craftboard/platform/internal/testhelpers"
)

func TestRunOnceSweepsAndRotates(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := seed.Seed(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := store.New(db)

	// Drift a pipeline counter; a maintenance pass must correct it.
	if _, err := db.ExecContext(ctx, `UPDATE pipelines SET record_count = 42`); err != nil {
		t.Fatalf("drift counter: %v", err)
	}

	r := maintenance.NewRunner(db, s.Counters, 0, 24)
	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT MAX(record_count) FROM pipelines`).Scan(&count); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if count != 0 {
		t.Errorf("record_count = %d, want 0", count)
	}

	// Partition maintenance must leave the current month writable.
	partitions, err := database.ListAuditPartitions(ctx, db)
	if err != nil {
		t.Fatalf("list partitions: %v", err)
	}
	if len(partitions) < 2 {
		t.Errorf("partitions = %v, want current and next month", partitions)
	}
}
