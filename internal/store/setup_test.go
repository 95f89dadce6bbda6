package store_test

import (
	"context"
	"testing"

	"github.com/craftboard/platform/internal/database"
	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/seed"
	"github.com/craftboard/platform/internal/store"
	"github.com/craftboard/platform/internal/testhelpers"
)

// newTestStore returns a fully migrated and seeded store plus a request
// context for the demo organization.
func newTestStore(t *testing.T) (*store.Store, domain.RequestContext) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()

	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := seed.Seed(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rc := domain.RequestContext{
		OrganizationID: seed.DemoOrgID,
		UserID:         "user-1",
		Source:         "API",
	}
	return store.New(db), rc
}

// addOrganization inserts a second tenant for cross-tenant tests.
func addOrganization(t *testing.T, s *store.Store, id string) domain.RequestContext {
	t.Helper()
	_, err := s.DB.Exec(
		`INSERT INTO organizations (id, name, created_at, updated_at)
		 VALUES (?, ?, '2026-01-01T00:00:00.000Z', '2026-01-01T00:00:00.000Z')`,
		id, "Org "+id,
	)
	if err != nil {
		t.Fatalf("insert organization %s: %v", id, err)
	}
	return domain.RequestContext{OrganizationID: id, UserID: "user-2", Source: "API"}
}

func mustCreate(t *testing.T, s *store.Store, rc domain.RequestContext, objectType string, props map[string]string) *domain.Record {
	t.Helper()
	record, err := s.Records.Create(context.Background(), rc, objectType, props)
	if err != nil {
		t.Fatalf("create %s: %v", objectType, err)
	}
	return record
}
