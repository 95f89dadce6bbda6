package store

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/locks"
)

// CounterStore recomputes the denormalized counters (list member counts,
// pipeline record counts). Recounts always derive the value from the source
// rows rather than incrementing, so a missed recount is corrected by the
// next one.
type CounterStore interface {
	RecountList(ctx context.Context, listID string) (int, error)
	RecountPipeline(ctx context.Context, pipelineID string) (int, error)
	SweepCounters(ctx context.Context) error
}

// SQLiteCounterStore implements CounterStore backed by SQLite. An advisory
// lock per counted entity serializes concurrent recounts of the same entity
// so that the stored value never reflects a stale read.
type SQLiteCounterStore struct {
	db    *sql.DB
	locks *locks.Manager
}

// NewSQLiteCounterStore creates a new SQLiteCounterStore.
func NewSQLiteCounterStore(db *sql.DB, lockMgr *locks.Manager) *SQLiteCounterStore {
	return &SQLiteCounterStore{db: db, locks: lockMgr}
}

// RecountList recomputes a list's member count from its membership rows.
// Excluded members do not count.
func (s *SQLiteCounterStore) RecountList(ctx context.Context, listID string) (int, error) {
	unlock := s.locks.Lock(domain.NewEntityRef(domain.EntityList, listID).Key())
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.WrapStorage("recount list", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM list_memberships WHERE list_id = ? AND excluded = FALSE`,
		listID,
	).Scan(&count); err != nil {
		return 0, domain.WrapStorage("count list members", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE lists SET member_count = ? WHERE id = ?`, count, listID,
	); err != nil {
		return 0, domain.WrapStorage("store list member count", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.WrapStorage("recount list", err)
	}
	return count, nil
}

// RecountPipeline recomputes a pipeline's record count from record_stages.
func (s *SQLiteCounterStore) RecountPipeline(ctx context.Context, pipelineID string) (int, error) {
	unlock := s.locks.Lock(domain.NewEntityRef(domain.EntityPipeline, pipelineID).Key())
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.WrapStorage("recount pipeline", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM record_stages WHERE pipeline_id = ?`, pipelineID,
	).Scan(&count); err != nil {
		return 0, domain.WrapStorage("count pipeline records", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE pipelines SET record_count = ? WHERE id = ?`, count, pipelineID,
	); err != nil {
		return 0, domain.WrapStorage("store pipeline record count", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.WrapStorage("recount pipeline", err)
	}
	return count, nil
}

// SweepCounters recounts every list and pipeline, repairing counters left
// stale by crashed or failed inline recounts. Per-entity failures are logged
// and the sweep continues.
func (s *SQLiteCounterStore) SweepCounters(ctx context.Context) error {
	listIDs, err := s.collectIDs(ctx, `SELECT id FROM lists WHERE archived = FALSE`)
	if err != nil {
		return err
	}
	for _, id := range listIDs {
		if _, err := s.RecountList(ctx, id); err != nil {
			slog.Error("counter sweep: list recount failed", "list_id", id, "error", err)
		}
	}

	pipelineIDs, err := s.collectIDs(ctx, `SELECT id FROM pipelines WHERE archived = FALSE`)
	if err != nil {
		return err
	}
	for _, id := range pipelineIDs {
		if _, err := s.RecountPipeline(ctx, id); err != nil {
			slog.Error("counter sweep: pipeline recount failed", "pipeline_id", id, "error", err)
		}
	}
	return nil
}

func (s *SQLiteCounterStore) collectIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.WrapStorage("collect counter targets", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.WrapStorage("scan counter target", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
