package schemas_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/craftboard/platform/internal/api"
	"github.com/craftboard/platform/internal/api/schemas"
	"github.com/craftboard/platform/internal/database"
	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/seed"
	"github.com/craftboard/platform/internal/store"
	"github.com/craftboard/platform/internal/testhelpers"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()

	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := seed.Seed(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := store.New(db)
	mux := http.NewServeMux()
	schemas.RegisterRoutes(mux, s.Registry)

	handler := api.Chain(mux, api.RequestID(), api.TenantContext())
	return httptest.NewServer(handler)
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set(api.HeaderOrganizationID, seed.DemoOrgID)
	req.Header.Set(api.HeaderUserID, "user-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestGetMergedSchemaEndpoint(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/v1/schemas/client", "")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var merged domain.MergedSchema
	if err := json.NewDecoder(resp.Body).Decode(&merged); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if merged.SchemaVersion != 1 {
		t.Errorf("schema version = %d, want 1", merged.SchemaVersion)
	}
	if _, ok := merged.Properties["name"]; !ok {
		t.Error("merged schema missing base property name")
	}
}

func TestAddCustomPropertyEndpoint(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	body := `{"name":"loyalty_tier","type":"enumeration","label":"Loyalty Tier","options":["bronze","silver","gold"]}`
	resp := do(t, http.MethodPost, srv.URL+"/v1/schemas/client/properties", body)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var merged domain.MergedSchema
	if err := json.NewDecoder(resp.Body).Decode(&merged); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := merged.Properties["loyalty_tier"]; !ok {
		t.Error("custom property not in merged schema")
	}

	// Shadowing a base property is a conflict.
	resp = do(t, http.MethodPost, srv.URL+"/v1/schemas/client/properties", `{"name":"email","type":"string","label":"Email"}`)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("shadow status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestOverridePropertyEndpoint(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := do(t, http.MethodPatch, srv.URL+"/v1/schemas/client/properties/email", `{"label":"Primary Email"}`)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var merged domain.MergedSchema
	if err := json.NewDecoder(resp.Body).Decode(&merged); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if merged.Properties["email"].Label != "Primary Email" {
		t.Errorf("label = %q", merged.Properties["email"].Label)
	}
}

func TestMigrateEndpointVersioning(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	body := `{"version":2,"description":"add loyalty tier"}`
	resp := do(t, http.MethodPost, srv.URL+"/v1/schemas/client/migrations", body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("migrate status = %d", resp.StatusCode)
	}

	// Replaying the same version conflicts.
	resp = do(t, http.MethodPost, srv.URL+"/v1/schemas/client/migrations", body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("replay status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/schemas/client/migrations", "")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list migrations status = %d", resp.StatusCode)
	}
	var collection struct {
		Results []domain.PropertyMigration `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(collection.Results) != 1 {
		t.Errorf("migrations = %d, want 1", len(collection.Results))
	}
}
