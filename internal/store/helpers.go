package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/craftboard/platform/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// now returns the current UTC time as a platform timestamp string.
func now() string {
	return time.Now().UTC().Format(timestampLayout)
}

// parseTimestamp parses a platform timestamp. Zero time on failure; callers
// only use it for duration math where a zero start is harmless.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// secondsBetween returns the whole seconds from a timestamp string to now,
// clamped at zero.
func secondsBetween(from string, to time.Time) int64 {
	start := parseTimestamp(from)
	if start.IsZero() {
		return 0
	}
	d := to.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}

// dbtx is the subset of *sql.DB and *sql.Tx the stores use, so audit writes
// can join the caller's transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mustJSON marshals v, returning "{}" on the (unreachable for our types)
// marshal failure so audit writes never carry invalid JSON.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// recordBelongsTo verifies a record exists in the caller's organization and
// returns its object definition id. Cross-tenant ids are NotFound.
func recordBelongsTo(ctx context.Context, q dbtx, rc domain.RequestContext, recordID string) (defID string, err error) {
	err = q.QueryRowContext(ctx,
		`SELECT object_definition_id FROM records WHERE id = ? AND organization_id = ?`,
		recordID, rc.OrganizationID,
	).Scan(&defID)
	if err != nil {
		return "", domain.NewError(domain.KindNotFound, "record %s not found", recordID)
	}
	return defID, nil
}

// formatID renders an autoincrement row id as the string form used
// everywhere above the storage layer.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
