package seed

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DemoOrgID is the organization created by Seed for local development and
// tests.
const DemoOrgID = "org-demo"

// Seed inserts the platform bootstrap data: a demo organization, the standard
// object definitions with their base properties, the system association
// types, and a default deal pipeline. It is idempotent — existing rows are
// left untouched. Call order matters: definitions before association types
// and pipelines.
func Seed(ctx context.Context, db *sql.DB) error {
	if err := Organizations(ctx, db); err != nil {
		return fmt.Errorf("seed organizations: %w", err)
	}
	if err := ObjectDefinitions(ctx, db); err != nil {
		return fmt.Errorf("seed object definitions: %w", err)
	}
	if err := AssociationTypes(ctx, db); err != nil {
		return fmt.Errorf("seed association types: %w", err)
	}
	if err := Pipelines(ctx, db); err != nil {
		return fmt.Errorf("seed pipelines: %w", err)
	}
	return nil
}

// Organizations inserts the demo organization.
func Organizations(ctx context.Context, db *sql.DB) error {
	ts := now()
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO organizations (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		DemoOrgID, "Demo Organization", ts, ts,
	)
	return err
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
