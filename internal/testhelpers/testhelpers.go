package testhelpers

import (
	"database/sql"
	"testing"
	"time"

	"github.com/craftboard/platform/internal/database"
)

// NewTestDB returns an in-memory SQLite database with the production pragmas
// but a short busy timeout, so a test that deadlocks on the single connection
// fails in a second instead of hanging. Closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.OpenWith(":memory:", database.Options{BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}
