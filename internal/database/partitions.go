package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Audit log rows are partitioned by month into audit_logs_YYYYMM tables so
// that pruning old history is a table drop, not a mass delete, and writes to
// the current month stay on a small table.

const auditPartitionPrefix = "audit_logs_"

var auditPartitionPattern = regexp.MustCompile(`^audit_logs_(\d{6})$`)

// Execer is the subset of *sql.DB / *sql.Tx needed to create a partition.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AuditPartitionName returns the partition table name for the given time.
func AuditPartitionName(t time.Time) string {
	return fmt.Sprintf("%s%s", auditPartitionPrefix, t.UTC().Format("200601"))
}

// EnsureAuditPartition creates the named partition table if it does not
// exist. Safe to call on every write; CREATE TABLE IF NOT EXISTS is cheap.
func EnsureAuditPartition(ctx context.Context, db Execer, name string) error {
	if !auditPartitionPattern.MatchString(name) {
		return fmt.Errorf("invalid audit partition name %q", name)
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			changed_fields TEXT,
			previous_values TEXT,
			new_values TEXT,
			actor_id TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'API',
			created_at TEXT NOT NULL
		)`, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_entity ON %s(organization_id, entity_type, entity_id, created_at)`, name, name),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure audit partition %s: %w", name, err)
		}
	}
	return nil
}

// ListAuditPartitions returns the names of all existing audit partitions in
// ascending month order.
func ListAuditPartitions(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE ?`,
		auditPartitionPrefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("list audit partitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan partition name: %w", err)
		}
		if auditPartitionPattern.MatchString(name) {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// MaintainAuditPartitions creates the current and next month's partitions and
// drops partitions older than retentionMonths. Runs as a scheduled task, not
// in the request path.
func MaintainAuditPartitions(ctx context.Context, db *sql.DB, now time.Time, retentionMonths int) error {
	now = now.UTC()
	if err := EnsureAuditPartition(ctx, db, AuditPartitionName(now)); err != nil {
		return err
	}
	if err := EnsureAuditPartition(ctx, db, AuditPartitionName(now.AddDate(0, 1, 0))); err != nil {
		return err
	}

	if retentionMonths <= 0 {
		return nil
	}
	cutoff := AuditPartitionName(now.AddDate(0, -retentionMonths, 0))

	names, err := ListAuditPartitions(ctx, db)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name < cutoff {
			if _, err := db.ExecContext(ctx, "DROP TABLE "+name); err != nil {
				return fmt.Errorf("prune audit partition %s: %w", name, err)
			}
		}
	}
	return nil
}
