package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/store"
)

var _ store.RecordStore = (*store.SQLiteRecordStore)(nil)

func TestRecordCreateAndGet(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	record := mustCreate(t, s, rc, "client", map[string]string{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
	})
	if record.ID == "" {
		t.Fatal("expected non-empty id")
	}
	if record.DisplayName != "Ada Lovelace" {
		t.Errorf("display name = %q, want Ada Lovelace", record.DisplayName)
	}
	// Schema default applied.
	if record.Properties["lifecycle_stage"] != "lead" {
		t.Errorf("lifecycle_stage = %q, want lead", record.Properties["lifecycle_stage"])
	}

	got, err := s.Records.Get(ctx, rc, record.ID, domain.GetOpts{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Properties["email"] != "ada@example.com" {
		t.Errorf("email = %q", got.Properties["email"])
	}

	// Property projection.
	got, err = s.Records.Get(ctx, rc, record.ID, domain.GetOpts{Properties: []string{"name"}})
	if err != nil {
		t.Fatalf("get with projection: %v", err)
	}
	if _, ok := got.Properties["email"]; ok {
		t.Error("projection leaked unrequested property")
	}
}

func TestRecordValidation(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		props map[string]string
		want  error
	}{
		{"missing required", map[string]string{"email": "x@example.com"}, domain.ErrRequiredProperty},
		{"unknown property", map[string]string{"name": "A", "favourite_colour": "teal"}, domain.ErrSchemaViolation},
		{"bad enum option", map[string]string{"name": "A", "lifecycle_stage": "galactic"}, domain.ErrSchemaViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Records.Create(ctx, rc, "client", tc.props)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	// Type checks on update.
	record := mustCreate(t, s, rc, "company", map[string]string{"name": "Initech"})
	_, err := s.Records.Update(ctx, rc, record.ID, map[string]string{"employee_count": "lots"})
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected schema violation for non-numeric number, got %v", err)
	}
	if _, err := s.Records.Update(ctx, rc, record.ID, map[string]string{"employee_count": "250"}); err != nil {
		t.Fatalf("valid update: %v", err)
	}
}

func TestRecordUpdateTracksHistory(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	record := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})
	if _, err := s.Records.Update(ctx, rc, record.ID, map[string]string{"name": "Ada Lovelace"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	history, err := s.Audit.ListPropertyHistory(ctx, rc, record.ID, "name")
	if err != nil {
		t.Fatalf("property history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2 (create + update)", len(history))
	}
	last := history[0] // newest first
	if last.PreviousValue != "Ada" || last.NewValue != "Ada Lovelace" {
		t.Errorf("history diff = %q -> %q", last.PreviousValue, last.NewValue)
	}
}

func TestRecordUpdateNoopSkipsAudit(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	record := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})
	if _, err := s.Records.Update(ctx, rc, record.ID, map[string]string{"name": "Ada"}); err != nil {
		t.Fatalf("noop update: %v", err)
	}

	history, err := s.Audit.ListPropertyHistory(ctx, rc, record.ID, "name")
	if err != nil {
		t.Fatalf("property history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1 (create only)", len(history))
	}
}

func TestRecordCrossTenantIsNotFound(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()
	other := addOrganization(t, s, "org-b")

	record := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})

	_, err := s.Records.Get(ctx, other, record.ID, domain.GetOpts{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant get: got %v, want not found", err)
	}
	if err := s.Records.Archive(ctx, other, record.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant archive: got %v, want not found", err)
	}
}

func TestRecordArchiveAndUnarchive(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	record := mustCreate(t, s, rc, "client", map[string]string{"name": "Ada"})
	if err := s.Records.Archive(ctx, rc, record.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	got, err := s.Records.Get(ctx, rc, record.ID, domain.GetOpts{})
	if err != nil {
		t.Fatalf("get archived: %v", err)
	}
	if !got.Archived {
		t.Error("record not archived")
	}

	// Updates on archived records conflict.
	if _, err := s.Records.Update(ctx, rc, record.ID, map[string]string{"name": "X"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Double archive is not found (already archived).
	if err := s.Records.Archive(ctx, rc, record.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double archive: got %v", err)
	}

	if err := s.Records.Unarchive(ctx, rc, record.ID); err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	got, err = s.Records.Get(ctx, rc, record.ID, domain.GetOpts{})
	if err != nil {
		t.Fatalf("get restored: %v", err)
	}
	if got.Archived {
		t.Error("record still archived after unarchive")
	}
}

func TestDealEntersDefaultPipeline(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	deal := mustCreate(t, s, rc, "deal", map[string]string{"title": "Big Deal"})

	pipelines, err := s.Pipelines.List(ctx, rc, deal.ObjectDefinitionID)
	if err != nil {
		t.Fatalf("list pipelines: %v", err)
	}
	if len(pipelines) != 1 {
		t.Fatalf("pipelines = %d, want 1", len(pipelines))
	}

	rs, err := s.Pipelines.GetRecordStage(ctx, rc, deal.ID, pipelines[0].ID)
	if err != nil {
		t.Fatalf("record stage: %v", err)
	}
	if rs.StageName != "Qualification" {
		t.Errorf("initial stage = %q, want Qualification", rs.StageName)
	}
}

func TestBatchCreateIsolatesFailures(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	result, err := s.Records.BatchCreate(ctx, rc, "client", []domain.CreateInput{
		{Properties: map[string]string{"name": "One"}},
		{Properties: map[string]string{"email": "no-name@example.com"}}, // missing required
		{Properties: map[string]string{"name": "Three"}},
	})
	if err != nil {
		t.Fatalf("batch create: %v", err)
	}
	if result.Success != 2 || result.Failed != 1 {
		t.Fatalf("success=%d failed=%d, want 2/1", result.Success, result.Failed)
	}
	if len(result.Errors) != 1 || result.Errors[0].Index != 1 {
		t.Fatalf("errors = %+v, want one at index 1", result.Errors)
	}
	if result.Errors[0].Kind != string(domain.KindRequiredPropertyMissing) {
		t.Errorf("error kind = %q", result.Errors[0].Kind)
	}

	op, err := s.Audit.GetBulkOperation(ctx, rc, result.OperationID)
	if err != nil {
		t.Fatalf("bulk operation: %v", err)
	}
	if op.SuccessCount != 2 || op.FailureCount != 1 {
		t.Errorf("bulk op counts = %d/%d", op.SuccessCount, op.FailureCount)
	}
}

func TestBatchUpdate(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, rc, "client", map[string]string{"name": "A"})
	b := mustCreate(t, s, rc, "client", map[string]string{"name": "B"})

	result, err := s.Records.BatchUpdate(ctx, rc, []domain.UpdateInput{
		{ID: a.ID, Properties: map[string]string{"email": "a@example.com"}},
		{ID: "999999", Properties: map[string]string{"email": "ghost@example.com"}},
		{ID: b.ID, Properties: map[string]string{"email": "b@example.com"}},
	})
	if err != nil {
		t.Fatalf("batch update: %v", err)
	}
	if result.Success != 2 || result.Failed != 1 {
		t.Fatalf("success=%d failed=%d, want 2/1", result.Success, result.Failed)
	}
	if result.Errors[0].RecordID != "999999" {
		t.Errorf("failed record = %q", result.Errors[0].RecordID)
	}
}

func TestCalculatedPropertyIsReadOnly(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	err := s.Registry.AddCustomProperty(ctx, rc, "deal", domain.PropertyDefinition{
		Name: "weighted_amount", Type: domain.PropCalculated, Label: "Weighted Amount",
	})
	if err != nil {
		t.Fatalf("add calculated property: %v", err)
	}

	_, err = s.Records.Create(ctx, rc, "deal", map[string]string{
		"title":           "Deal",
		"weighted_amount": "100",
	})
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected schema violation for calculated write, got %v", err)
	}
}
