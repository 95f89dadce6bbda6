package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/store"
)

// Verify interface compliance at compile time.
var _ store.Registry = (*store.SQLiteRegistry)(nil)

func TestResolveObjectType(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	def, err := s.Registry.ResolveObjectType(ctx, "client")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if def.LabelSingular != "Client" {
		t.Errorf("label = %q, want Client", def.LabelSingular)
	}
	if _, ok := def.Properties["name"]; !ok {
		t.Error("expected base property name")
	}
	if !def.Properties["name"].Required {
		t.Error("expected name to be required")
	}

	// Resolution by definition id works too.
	byID, err := s.Registry.ResolveObjectType(ctx, def.ID)
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	if byID.ObjectType != "client" {
		t.Errorf("objectType = %q, want client", byID.ObjectType)
	}
}

func TestResolveUnknownType(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Registry.ResolveObjectType(context.Background(), "spaceship")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateObjectTypeDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Registry.CreateObjectType(ctx, &domain.ObjectDefinition{
		ObjectType:    "client",
		LabelSingular: "Client",
		LabelPlural:   "Clients",
	})
	if !errors.Is(err, domain.ErrDuplicateDefinition) {
		t.Fatalf("expected duplicate definition, got %v", err)
	}
}

func TestCreateCustomObjectType(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	def, err := s.Registry.CreateObjectType(ctx, &domain.ObjectDefinition{
		ObjectType:    "invoice",
		LabelSingular: "Invoice",
		LabelPlural:   "Invoices",
		IsCustom:      true,
		Properties: map[string]domain.PropertyDefinition{
			"number": {Name: "number", Type: domain.PropString, Label: "Number", Required: true},
			"total":  {Name: "total", Type: domain.PropNumber, Label: "Total"},
		},
	})
	if err != nil {
		t.Fatalf("create object type: %v", err)
	}
	if def.ID == "" {
		t.Fatal("expected generated id")
	}

	record := mustCreate(t, s, rc, "invoice", map[string]string{"number": "INV-1", "total": "99.50"})
	if record.Properties["number"] != "INV-1" {
		t.Errorf("number = %q", record.Properties["number"])
	}
}

func TestMergedSchemaOverlay(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	// Base schema first.
	merged, err := s.Registry.GetMergedSchema(ctx, rc, "client")
	if err != nil {
		t.Fatalf("merged schema: %v", err)
	}
	if merged.SchemaVersion != 1 {
		t.Errorf("schema version = %d, want 1", merged.SchemaVersion)
	}

	// Custom property, label override, and a hidden property.
	err = s.Registry.AddCustomProperty(ctx, rc, "client", domain.PropertyDefinition{
		Name: "loyalty_tier", Type: domain.PropEnumeration, Label: "Loyalty Tier",
		Options: []string{"bronze", "silver", "gold"},
	})
	if err != nil {
		t.Fatalf("add custom property: %v", err)
	}

	label := "Primary Email"
	if err := s.Registry.OverrideProperty(ctx, rc, "client", "email", domain.PropertyOverride{Label: &label}); err != nil {
		t.Fatalf("override property: %v", err)
	}
	if err := s.Registry.OverrideProperty(ctx, rc, "client", "phone", domain.PropertyOverride{Hidden: true}); err != nil {
		t.Fatalf("hide property: %v", err)
	}

	merged, err = s.Registry.GetMergedSchema(ctx, rc, "client")
	if err != nil {
		t.Fatalf("merged schema after overlay: %v", err)
	}
	if _, ok := merged.Properties["loyalty_tier"]; !ok {
		t.Error("expected custom property in merged schema")
	}
	if merged.Properties["email"].Label != "Primary Email" {
		t.Errorf("email label = %q, want Primary Email", merged.Properties["email"].Label)
	}
	if _, ok := merged.Properties["phone"]; ok {
		t.Error("hidden property still present in merged schema")
	}

	// Merging is idempotent: a second read returns the same result.
	again, err := s.Registry.GetMergedSchema(ctx, rc, "client")
	if err != nil {
		t.Fatalf("merged schema (repeat): %v", err)
	}
	if len(again.Properties) != len(merged.Properties) {
		t.Errorf("property count changed between reads: %d vs %d", len(again.Properties), len(merged.Properties))
	}
}

func TestOverlayIsPerOrganization(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()
	other := addOrganization(t, s, "org-b")

	if err := s.Registry.OverrideProperty(ctx, rc, "client", "phone", domain.PropertyOverride{Hidden: true}); err != nil {
		t.Fatalf("hide property: %v", err)
	}

	merged, err := s.Registry.GetMergedSchema(ctx, other, "client")
	if err != nil {
		t.Fatalf("merged schema for other org: %v", err)
	}
	if _, ok := merged.Properties["phone"]; !ok {
		t.Error("other organization's schema lost a property it never hid")
	}
}

func TestAddCustomPropertyConflicts(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	// Shadowing a base property is rejected.
	err := s.Registry.AddCustomProperty(ctx, rc, "client", domain.PropertyDefinition{
		Name: "email", Type: domain.PropString, Label: "Email",
	})
	if !errors.Is(err, domain.ErrDuplicateDefinition) {
		t.Fatalf("expected duplicate definition, got %v", err)
	}

	prop := domain.PropertyDefinition{Name: "region", Type: domain.PropString, Label: "Region"}
	if err := s.Registry.AddCustomProperty(ctx, rc, "client", prop); err != nil {
		t.Fatalf("add custom property: %v", err)
	}
	err = s.Registry.AddCustomProperty(ctx, rc, "client", prop)
	if !errors.Is(err, domain.ErrDuplicateDefinition) {
		t.Fatalf("expected duplicate custom property, got %v", err)
	}
}

func TestMigrateSchemaVersioning(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	if err := s.Registry.MigrateSchema(ctx, rc, "client", 2, "add loyalty tier", `{"added":["loyalty_tier"]}`, ""); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}

	// A stale version is rejected.
	err := s.Registry.MigrateSchema(ctx, rc, "client", 2, "replay", "", "")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}

	merged, err := s.Registry.GetMergedSchema(ctx, rc, "client")
	if err != nil {
		t.Fatalf("merged schema: %v", err)
	}
	if merged.SchemaVersion != 2 {
		t.Errorf("schema version = %d, want 2", merged.SchemaVersion)
	}

	migrations, err := s.Registry.ListMigrations(ctx, rc, "client")
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(migrations) != 1 || migrations[0].Version != 2 {
		t.Fatalf("migrations = %+v, want one entry at version 2", migrations)
	}
}
