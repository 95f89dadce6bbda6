package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/craftboard/platform/internal/database"
	"github.com/craftboard/platform/internal/domain"
)

// AuditStore defines the interface for the immutable change log, granular
// property history, and bulk operation bookkeeping.
type AuditStore interface {
	Append(ctx context.Context, q dbtx, entry *domain.AuditLog) error
	AppendPropertyHistory(ctx context.Context, q dbtx, h *domain.PropertyHistory) error
	ListByEntity(ctx context.Context, rc domain.RequestContext, kind domain.EntityKind, entityID string, since, until time.Time) ([]domain.AuditLog, error)
	ListPropertyHistory(ctx context.Context, rc domain.RequestContext, recordID, propertyName string) ([]domain.PropertyHistory, error)
	RecordBulkOperation(ctx context.Context, op *domain.BulkOperationLog) error
	GetBulkOperation(ctx context.Context, rc domain.RequestContext, id string) (*domain.BulkOperationLog, error)
	MarkRolledBack(ctx context.Context, rc domain.RequestContext, id string) error
}

// SQLiteAuditStore implements AuditStore backed by SQLite. Audit rows are
// routed to monthly partition tables by their timestamp.
type SQLiteAuditStore struct {
	db *sql.DB
}

// NewSQLiteAuditStore creates a new SQLiteAuditStore.
func NewSQLiteAuditStore(db *sql.DB) *SQLiteAuditStore {
	return &SQLiteAuditStore{db: db}
}

// Append writes one audit row to the partition for its timestamp. The row is
// written through q so it can join the caller's transaction; a failed audit
// write must fail the mutation it describes.
func (s *SQLiteAuditStore) Append(ctx context.Context, q dbtx, entry *domain.AuditLog) error {
	if entry.CreatedAt == "" {
		entry.CreatedAt = now()
	}
	partition := database.AuditPartitionName(parseTimestamp(entry.CreatedAt))
	if err := database.EnsureAuditPartition(ctx, q, partition); err != nil {
		return domain.WrapStorage("audit append", err)
	}

	var changed sql.NullString
	if len(entry.ChangedFields) > 0 {
		changed = sql.NullString{String: mustJSON(entry.ChangedFields), Valid: true}
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO `+partition+` (organization_id, entity_type, entity_id, action, changed_fields, previous_values, new_values, actor_id, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OrganizationID, string(entry.EntityType), entry.EntityID, entry.Action,
		changed, nullable(entry.PreviousValues), nullable(entry.NewValues),
		entry.ActorID, entry.Source, entry.CreatedAt,
	)
	if err != nil {
		return domain.WrapStorage("audit append", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = strconv.FormatInt(id, 10)
	}
	return nil
}

// AppendPropertyHistory writes one per-property change row.
func (s *SQLiteAuditStore) AppendPropertyHistory(ctx context.Context, q dbtx, h *domain.PropertyHistory) error {
	if h.ChangedAt == "" {
		h.ChangedAt = now()
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO property_history (organization_id, record_id, property_name, previous_value, new_value, actor_id, source, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.OrganizationID, h.RecordID, h.PropertyName,
		nullable(h.PreviousValue), h.NewValue, h.ActorID, h.Source, h.ChangedAt,
	)
	if err != nil {
		return domain.WrapStorage("property history append", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		h.ID = strconv.FormatInt(id, 10)
	}
	return nil
}

// ListByEntity returns audit rows for one entity across every partition that
// overlaps [since, until], newest first.
func (s *SQLiteAuditStore) ListByEntity(ctx context.Context, rc domain.RequestContext, kind domain.EntityKind, entityID string, since, until time.Time) ([]domain.AuditLog, error) {
	partitions, err := database.ListAuditPartitions(ctx, s.db)
	if err != nil {
		return nil, domain.WrapStorage("list audit partitions", err)
	}

	lo := database.AuditPartitionName(since)
	hi := database.AuditPartitionName(until)

	var entries []domain.AuditLog
	// Iterate newest partition first.
	for i := len(partitions) - 1; i >= 0; i-- {
		name := partitions[i]
		if name < lo || name > hi {
			continue
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, organization_id, entity_type, entity_id, action, changed_fields, previous_values, new_values, actor_id, source, created_at
			 FROM `+name+`
			 WHERE organization_id = ? AND entity_type = ? AND entity_id = ?
			 ORDER BY created_at DESC, id DESC`,
			rc.OrganizationID, string(kind), entityID,
		)
		if err != nil {
			return nil, domain.WrapStorage("list audit entries", err)
		}
		partEntries, err := scanAuditRows(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, partEntries...)
	}
	return entries, nil
}

func scanAuditRows(rows *sql.Rows) ([]domain.AuditLog, error) {
	defer func() { _ = rows.Close() }()

	var entries []domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		var id int64
		var entityType string
		var changed, prev, next sql.NullString
		if err := rows.Scan(&id, &e.OrganizationID, &entityType, &e.EntityID, &e.Action,
			&changed, &prev, &next, &e.ActorID, &e.Source, &e.CreatedAt); err != nil {
			return nil, domain.WrapStorage("scan audit entry", err)
		}
		e.ID = strconv.FormatInt(id, 10)
		e.EntityType = domain.EntityKind(entityType)
		if changed.Valid {
			e.ChangedFields = splitJSONStrings(changed.String)
		}
		e.PreviousValues = prev.String
		e.NewValues = next.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListPropertyHistory returns change rows for one record, optionally
// restricted to a property, newest first.
func (s *SQLiteAuditStore) ListPropertyHistory(ctx context.Context, rc domain.RequestContext, recordID, propertyName string) ([]domain.PropertyHistory, error) {
	query := `SELECT id, organization_id, record_id, property_name, previous_value, new_value, actor_id, source, changed_at
	          FROM property_history WHERE organization_id = ? AND record_id = ?`
	args := []any{rc.OrganizationID, recordID}
	if propertyName != "" {
		query += ` AND property_name = ?`
		args = append(args, propertyName)
	}
	query += ` ORDER BY changed_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapStorage("list property history", err)
	}
	defer func() { _ = rows.Close() }()

	var history []domain.PropertyHistory
	for rows.Next() {
		var h domain.PropertyHistory
		var id, recID int64
		var prev sql.NullString
		if err := rows.Scan(&id, &h.OrganizationID, &recID, &h.PropertyName, &prev, &h.NewValue, &h.ActorID, &h.Source, &h.ChangedAt); err != nil {
			return nil, domain.WrapStorage("scan property history", err)
		}
		h.ID = strconv.FormatInt(id, 10)
		h.RecordID = strconv.FormatInt(recID, 10)
		h.PreviousValue = prev.String
		history = append(history, h)
	}
	return history, rows.Err()
}

// RecordBulkOperation persists the aggregate outcome of a bulk operation.
func (s *SQLiteAuditStore) RecordBulkOperation(ctx context.Context, op *domain.BulkOperationLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bulk_operations (id, organization_id, entity_type, action, success_count, failure_count, skipped_count, errors, rollback_data, was_rolled_back, actor_id, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.OrganizationID, string(op.EntityType), op.Action,
		op.SuccessCount, op.FailureCount, op.SkippedCount,
		nullable(op.Errors), nullable(op.RollbackData), op.WasRolledBack,
		op.ActorID, op.StartedAt, op.CompletedAt,
	)
	if err != nil {
		return domain.WrapStorage("record bulk operation", err)
	}
	return nil
}

// GetBulkOperation returns one bulk operation row, org-scoped.
func (s *SQLiteAuditStore) GetBulkOperation(ctx context.Context, rc domain.RequestContext, id string) (*domain.BulkOperationLog, error) {
	var op domain.BulkOperationLog
	var entityType string
	var errs, rollback sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, entity_type, action, success_count, failure_count, skipped_count, errors, rollback_data, was_rolled_back, actor_id, started_at, completed_at
		 FROM bulk_operations WHERE id = ? AND organization_id = ?`,
		id, rc.OrganizationID,
	).Scan(&op.ID, &op.OrganizationID, &entityType, &op.Action,
		&op.SuccessCount, &op.FailureCount, &op.SkippedCount,
		&errs, &rollback, &op.WasRolledBack, &op.ActorID, &op.StartedAt, &op.CompletedAt)
	if err != nil {
		return nil, domain.NewError(domain.KindNotFound, "bulk operation %s not found", id)
	}
	op.EntityType = domain.EntityKind(entityType)
	op.Errors = errs.String
	op.RollbackData = rollback.String
	return &op, nil
}

// MarkRolledBack flags a bulk operation as reversed. An operation can only
// be rolled back once.
func (s *SQLiteAuditStore) MarkRolledBack(ctx context.Context, rc domain.RequestContext, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bulk_operations SET was_rolled_back = TRUE WHERE id = ? AND organization_id = ? AND was_rolled_back = FALSE`,
		id, rc.OrganizationID,
	)
	if err != nil {
		return domain.WrapStorage("mark rolled back", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetBulkOperation(ctx, rc, id); err != nil {
			return err
		}
		return domain.NewError(domain.KindConflict, "bulk operation %s already rolled back", id)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// splitJSONStrings decodes a JSON array of strings, tolerating malformed
// input by returning nil (audit reads must not fail on one bad row).
func splitJSONStrings(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
