package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/seed"
	"github.com/craftboard/platform/internal/store"
)

var _ store.AssociationStore = (*store.SQLiteAssociationStore)(nil)

func findAssociationType(t *testing.T, s *store.Store, name string) *domain.AssociationType {
	t.Helper()
	types, err := s.Associations.ListTypes(context.Background())
	if err != nil {
		t.Fatalf("list association types: %v", err)
	}
	for _, at := range types {
		if at.Name == name {
			return at
		}
	}
	t.Fatalf("association type %q not seeded", name)
	return nil
}

func TestDefineAssociationType(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	at, err := s.Associations.DefineType(ctx, rc, &domain.AssociationType{
		FromObjectTypeID: seed.ClientTypeID,
		ToObjectTypeID:   seed.TaskTypeID,
		Name:             "client_to_task",
		Label:            "Assigned task",
		Cardinality:      domain.OneToMany,
	})
	if err != nil {
		t.Fatalf("define type: %v", err)
	}
	if at.ID == "" {
		t.Fatal("expected id")
	}

	// Same triple again is a duplicate.
	_, err = s.Associations.DefineType(ctx, rc, &domain.AssociationType{
		FromObjectTypeID: seed.ClientTypeID,
		ToObjectTypeID:   seed.TaskTypeID,
		Name:             "client_to_task",
		Label:            "Assigned task",
		Cardinality:      domain.OneToMany,
	})
	if !errors.Is(err, domain.ErrDuplicateDefinition) {
		t.Fatalf("expected duplicate definition, got %v", err)
	}

	// Bounds sanity.
	_, err = s.Associations.DefineType(ctx, rc, &domain.AssociationType{
		FromObjectTypeID: seed.ClientTypeID,
		ToObjectTypeID:   seed.TaskTypeID,
		Name:             "bad_bounds",
		Label:            "Bad",
		Cardinality:      domain.ManyToMany,
		FromMin:          3,
		FromMax:          2,
	})
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected schema violation for max < min, got %v", err)
	}
}

func TestAssociateIsIdempotent(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	client := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})
	company := mustCreate(t, s, rc, "company", map[string]string{"name": "Initech"})
	at := findAssociationType(t, s, "client_to_company")

	first, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, company.ID, nil)
	if err != nil {
		t.Fatalf("associate: %v", err)
	}
	second, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, company.ID, nil)
	if err != nil {
		t.Fatalf("associate (repeat): %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("idempotent associate produced a new edge: %s vs %s", first.ID, second.ID)
	}
}

func TestAssociateChecksEndpointTypes(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	client := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})
	task := mustCreate(t, s, rc, "task", map[string]string{"title": "Call Ada"})
	at := findAssociationType(t, s, "client_to_company")

	_, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, task.ID, nil)
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected schema violation for wrong endpoint type, got %v", err)
	}
}

func TestCardinalityEnforcement(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	// client_to_company is many-to-one: a client works at one company.
	at := findAssociationType(t, s, "client_to_company")

	client := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})
	acme := mustCreate(t, s, rc, "company", map[string]string{"name": "Acme"})
	initech := mustCreate(t, s, rc, "company", map[string]string{"name": "Initech"})

	if _, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, acme.ID, nil); err != nil {
		t.Fatalf("first associate: %v", err)
	}
	_, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, initech.ID, nil)
	if !errors.Is(err, domain.ErrCardinalityViolation) {
		t.Fatalf("expected cardinality violation, got %v", err)
	}

	// Dissociating frees the slot.
	if err := s.Associations.Dissociate(ctx, rc, at.ID, client.ID, acme.ID); err != nil {
		t.Fatalf("dissociate: %v", err)
	}
	if _, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, initech.ID, nil); err != nil {
		t.Fatalf("associate after dissociate: %v", err)
	}
}

func TestDissociateKeepsHistory(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	client := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})
	company := mustCreate(t, s, rc, "company", map[string]string{"name": "Acme"})
	at := findAssociationType(t, s, "client_to_company")

	edge, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, company.ID, nil)
	if err != nil {
		t.Fatalf("associate: %v", err)
	}
	if err := s.Associations.Dissociate(ctx, rc, at.ID, client.ID, company.ID); err != nil {
		t.Fatalf("dissociate: %v", err)
	}

	// Row still exists, end-dated.
	var endDate string
	err = s.DB.QueryRow(`SELECT end_date FROM associations WHERE id = ?`, edge.ID).Scan(&endDate)
	if err != nil || endDate == "" {
		t.Fatalf("expected end-dated row, err=%v end_date=%q", err, endDate)
	}

	// Not listed among active edges.
	views, err := s.Associations.GetAssociations(ctx, rc, client.ID, domain.DirectionFrom, "")
	if err != nil {
		t.Fatalf("get associations: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("active edges = %d, want 0", len(views))
	}

	// Dissociating again is not found.
	if err := s.Associations.Dissociate(ctx, rc, at.ID, client.ID, company.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double dissociate: got %v", err)
	}

	// Re-associating reactivates the same row.
	again, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, company.ID, nil)
	if err != nil {
		t.Fatalf("re-associate: %v", err)
	}
	if again.ID != edge.ID {
		t.Errorf("re-associate created new row: %s vs %s", again.ID, edge.ID)
	}
	if again.EndDate != "" {
		t.Errorf("reactivated edge still end-dated: %q", again.EndDate)
	}
}

func TestGetAssociationsWithOrgLabel(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	client := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})
	company := mustCreate(t, s, rc, "company", map[string]string{"name": "Acme"})
	at := findAssociationType(t, s, "client_to_company")

	if _, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, company.ID, map[string]string{"role": "CTO"}); err != nil {
		t.Fatalf("associate: %v", err)
	}

	views, err := s.Associations.GetAssociations(ctx, rc, client.ID, domain.DirectionFrom, "")
	if err != nil {
		t.Fatalf("get associations: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
	if views[0].Label != "Works at" {
		t.Errorf("label = %q, want system label", views[0].Label)
	}
	if views[0].Counterpart == nil || views[0].Counterpart.DisplayName != "Acme" {
		t.Errorf("counterpart = %+v", views[0].Counterpart)
	}
	if views[0].Properties["role"] != "CTO" {
		t.Errorf("edge properties = %+v", views[0].Properties)
	}

	// Organization label override takes precedence.
	if err := s.Associations.SetOrganizationLabel(ctx, rc, at.ID, "Member of", "Has member"); err != nil {
		t.Fatalf("set label: %v", err)
	}
	views, err = s.Associations.GetAssociations(ctx, rc, client.ID, domain.DirectionFrom, "")
	if err != nil {
		t.Fatalf("get associations after label: %v", err)
	}
	if views[0].Label != "Member of" {
		t.Errorf("label = %q, want Member of", views[0].Label)
	}

	// Inverse direction sees the inverse label.
	inverse, err := s.Associations.GetAssociations(ctx, rc, company.ID, domain.DirectionTo, "")
	if err != nil {
		t.Fatalf("get inverse associations: %v", err)
	}
	if len(inverse) != 1 || inverse[0].Label != "Has member" {
		t.Fatalf("inverse views = %+v", inverse)
	}
}

func TestGetAssociationsResolvesManyCounterparts(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	// Several active edges must come back in a single read even though the
	// pool holds one connection.
	company := mustCreate(t, s, rc, "company", map[string]string{"name": "Acme"})
	at := findAssociationType(t, s, "client_to_company")

	names := []string{"Ada", "Grace", "Alan", "Edsger"}
	for _, name := range names {
		client := mustCreate(t, s, rc, "client", map[string]string{"name": name})
		if _, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, company.ID, nil); err != nil {
			t.Fatalf("associate %s: %v", name, err)
		}
	}

	views, err := s.Associations.GetAssociations(ctx, rc, company.ID, domain.DirectionTo, "")
	if err != nil {
		t.Fatalf("get associations: %v", err)
	}
	if len(views) != len(names) {
		t.Fatalf("views = %d, want %d", len(views), len(names))
	}
	seen := map[string]bool{}
	for _, v := range views {
		if v.Counterpart == nil {
			t.Fatal("counterpart not resolved")
		}
		seen[v.Counterpart.DisplayName] = true
	}
	for _, name := range names {
		if !seen[name] {
			t.Errorf("counterpart %q missing from views", name)
		}
	}
}

func TestArchiveCascadesPerPolicy(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	// task_to_client has cascade "to": archiving the client end-dates its
	// task edges. client_to_company has cascade "none": archiving the client
	// leaves the company edge alone.
	client := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})
	company := mustCreate(t, s, rc, "company", map[string]string{"name": "Acme"})
	task := mustCreate(t, s, rc, "task", map[string]string{"title": "Call"})

	toCompany := findAssociationType(t, s, "client_to_company")
	taskToClient := findAssociationType(t, s, "task_to_client")

	companyEdge, err := s.Associations.Associate(ctx, rc, toCompany.ID, client.ID, company.ID, nil)
	if err != nil {
		t.Fatalf("associate company: %v", err)
	}
	taskEdge, err := s.Associations.Associate(ctx, rc, taskToClient.ID, task.ID, client.ID, nil)
	if err != nil {
		t.Fatalf("associate task: %v", err)
	}

	if err := s.Records.Archive(ctx, rc, client.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	var end *string
	if err := s.DB.QueryRow(`SELECT end_date FROM associations WHERE id = ?`, taskEdge.ID).Scan(&end); err != nil {
		t.Fatalf("query task edge: %v", err)
	}
	if end == nil {
		t.Error("task edge not end-dated by cascade")
	}
	if err := s.DB.QueryRow(`SELECT end_date FROM associations WHERE id = ?`, companyEdge.ID).Scan(&end); err != nil {
		t.Fatalf("query company edge: %v", err)
	}
	if end != nil {
		t.Error("company edge end-dated despite cascade none")
	}
}

func TestRecordGetWithAssociations(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	client := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})
	company := mustCreate(t, s, rc, "company", map[string]string{"name": "Acme"})
	at := findAssociationType(t, s, "client_to_company")
	if _, err := s.Associations.Associate(ctx, rc, at.ID, client.ID, company.ID, nil); err != nil {
		t.Fatalf("associate: %v", err)
	}

	got, err := s.Records.Get(ctx, rc, client.ID, domain.GetOpts{Associations: true})
	if err != nil {
		t.Fatalf("get with associations: %v", err)
	}
	if len(got.Associations) != 1 {
		t.Fatalf("associations = %d, want 1", len(got.Associations))
	}
	if got.Associations[0].Counterpart.ID != company.ID {
		t.Errorf("counterpart = %s, want %s", got.Associations[0].Counterpart.ID, company.ID)
	}
}
