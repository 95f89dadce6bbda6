package schemas

import (
	"encoding/json"
	"net/http"

	"github.com/craftboard/platform/internal/api"
	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/store"
)

// Handler handles object type and schema overlay HTTP requests.
type Handler struct {
	registry store.Registry
}

// List handles GET /v1/schemas.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	defs, err := h.registry.ListObjectTypes(r.Context())
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	results := make([]any, len(defs))
	for i := range defs {
		results[i] = defs[i]
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}

// Create handles POST /v1/schemas. New object types are custom by
// definition; platform types come from bootstrap.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())

	var def domain.ObjectDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	if def.ObjectType == "" || def.LabelSingular == "" {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("objectType and labelSingular are required", corrID, nil))
		return
	}

	created, err := h.registry.CreateObjectType(r.Context(), &def)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// Get handles GET /v1/schemas/{objectType}. The response is the caller
// organization's merged view: base properties plus overlay customizations.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	rc := api.RequestContextFrom(r.Context())

	merged, err := h.registry.GetMergedSchema(r.Context(), rc, objectType)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, merged)
}

// AddProperty handles POST /v1/schemas/{objectType}/properties.
func (h *Handler) AddProperty(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var prop domain.PropertyDefinition
	if err := json.NewDecoder(r.Body).Decode(&prop); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	if prop.Name == "" {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("name is required", corrID, nil))
		return
	}

	if err := h.registry.AddCustomProperty(r.Context(), rc, objectType, prop); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	merged, err := h.registry.GetMergedSchema(r.Context(), rc, objectType)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, merged)
}

// OverrideProperty handles PATCH /v1/schemas/{objectType}/properties/{propertyName}.
func (h *Handler) OverrideProperty(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	propertyName := r.PathValue("propertyName")
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var override domain.PropertyOverride
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}

	if err := h.registry.OverrideProperty(r.Context(), rc, objectType, propertyName, override); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	merged, err := h.registry.GetMergedSchema(r.Context(), rc, objectType)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, merged)
}

// Migrate handles POST /v1/schemas/{objectType}/migrations. The version must
// be exactly one greater than the overlay's current version.
func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		Version      int    `json:"version"`
		Description  string `json:"description"`
		Changes      string `json:"changes"`
		RollbackData string `json:"rollbackData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}

	if err := h.registry.MigrateSchema(r.Context(), rc, objectType, body.Version, body.Description, body.Changes, body.RollbackData); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMigrations handles GET /v1/schemas/{objectType}/migrations.
func (h *Handler) ListMigrations(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	rc := api.RequestContextFrom(r.Context())

	migrations, err := h.registry.ListMigrations(r.Context(), rc, objectType)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	results := make([]any, len(migrations))
	for i := range migrations {
		results[i] = migrations[i]
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}
