package records_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/craftboard/platform/internal/api"
	"github.com/craftboard/platform/internal/api/records"
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
	records.RegisterRoutes(mux, s)

	handler := api.Chain(mux, api.RequestID(), api.TenantContext())
	return httptest.NewServer(handler)
}

// do sends a request with the demo tenant headers set.
func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, url, buf)
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

func decodeRecord(t *testing.T, resp *http.Response) domain.Record {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var rec domain.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return rec
}

func createClient(t *testing.T, srv *httptest.Server, props string) domain.Record {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/v1/records/client", `{"properties":`+props+`}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create client: status = %d", resp.StatusCode)
	}
	return decodeRecord(t, resp)
}

func TestCreateEndpoint(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	rec := createClient(t, srv, `{"name":"Ada Lovelace","email":"ada@analytical.dev"}`)
	if rec.ID == "" {
		t.Error("record has no id")
	}
	if rec.DisplayName != "Ada Lovelace" {
		t.Errorf("display name = %q", rec.DisplayName)
	}
	if rec.Properties["lifecycle_stage"] != "lead" {
		t.Errorf("default lifecycle_stage = %q", rec.Properties["lifecycle_stage"])
	}
}

func TestCreateEndpointValidation(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	// Missing required name.
	resp := do(t, http.MethodPost, srv.URL+"/v1/records/client", `{"properties":{"email":"x@y.dev"}}`)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	var apiErr api.Error
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if apiErr.SubCategory != string(domain.KindRequiredPropertyMissing) {
		t.Errorf("subCategory = %q", apiErr.SubCategory)
	}

	// Unknown object type.
	resp = do(t, http.MethodPost, srv.URL+"/v1/records/spaceship", `{"properties":{"name":"X"}}`)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown type status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestGetUpdateArchiveEndpoints(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	created := createClient(t, srv, `{"name":"Grace Hopper"}`)

	resp := do(t, http.MethodGet, srv.URL+"/v1/records/client/"+created.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	got := decodeRecord(t, resp)
	if got.ID != created.ID {
		t.Errorf("got id %s, want %s", got.ID, created.ID)
	}

	resp = do(t, http.MethodPatch, srv.URL+"/v1/records/client/"+created.ID, `{"properties":{"email":"grace@navy.mil"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	updated := decodeRecord(t, resp)
	if updated.Properties["email"] != "grace@navy.mil" {
		t.Errorf("email = %q", updated.Properties["email"])
	}

	resp = do(t, http.MethodDelete, srv.URL+"/v1/records/client/"+created.ID, "")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("archive status = %d", resp.StatusCode)
	}

	// Updating an archived record conflicts.
	resp = do(t, http.MethodPatch, srv.URL+"/v1/records/client/"+created.ID, `{"properties":{"email":"late@navy.mil"}}`)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("update archived status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	resp = do(t, http.MethodPost, srv.URL+"/v1/records/client/"+created.ID+"/unarchive", "")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("unarchive status = %d", resp.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	createClient(t, srv, `{"name":"Match","lifecycle_stage":"customer"}`)
	createClient(t, srv, `{"name":"Miss","lifecycle_stage":"lead"}`)

	body := `{"filterGroups":[{"filters":[{"propertyName":"lifecycle_stage","operator":"EQ","value":"customer"}]}]}`
	resp := do(t, http.MethodPost, srv.URL+"/v1/records/client/search", body)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}

	var result domain.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("total = %d, want 1", result.Total)
	}
}

func TestBatchCreateEndpoint(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	body := `{"inputs":[{"properties":{"name":"One"}},{"properties":{"email":"no-name@x.dev"}}]}`
	resp := do(t, http.MethodPost, srv.URL+"/v1/records/client/batch/create", body)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("batch status = %d", resp.StatusCode)
	}

	var result domain.BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Success != 1 || result.Failed != 1 {
		t.Errorf("success = %d failed = %d, want 1/1", result.Success, result.Failed)
	}
	if result.OperationID == "" {
		t.Error("no operation id")
	}
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	created := createClient(t, srv, `{"name":"Private"}`)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/records/client/"+created.ID, http.NoBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set(api.HeaderOrganizationID, "org-intruder")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cross-tenant status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
