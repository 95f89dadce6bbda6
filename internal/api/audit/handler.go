package audit

import (
	"net/http"
	"time"

	"github.com/craftboard/platform/internal/api"
	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/store"
)

// Handler handles audit log and bulk operation HTTP requests.
type Handler struct {
	store *store.Store
}

// Entity kinds accepted in the audit path.
var entityKinds = map[string]domain.EntityKind{
	"records":           domain.EntityRecord,
	"object-types":      domain.EntityObjectType,
	"associations":      domain.EntityAssociation,
	"association-types": domain.EntityAssociationType,
	"pipelines":         domain.EntityPipeline,
	"lists":             domain.EntityList,
	"schemas":           domain.EntitySchema,
}

// queryTime parses an RFC 3339 query parameter, returning fallback when the
// parameter is absent.
func queryTime(r *http.Request, name string, fallback time.Time) (time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ListByEntity handles GET /v1/audit/{entityType}/{entityId}. The since and
// until query parameters bound the window; the default window is the last
// 30 days.
func (h *Handler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	kind, ok := entityKinds[r.PathValue("entityType")]
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("unknown entity type", corrID, nil))
		return
	}

	nowUTC := time.Now().UTC()
	since, ok := queryTime(r, "since", nowUTC.AddDate(0, 0, -30))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("since must be RFC 3339", corrID, nil))
		return
	}
	until, ok := queryTime(r, "until", nowUTC)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("until must be RFC 3339", corrID, nil))
		return
	}

	entries, err := h.store.Audit.ListByEntity(r.Context(), rc, kind, r.PathValue("entityId"), since, until)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	results := make([]any, len(entries))
	for i := range entries {
		results[i] = entries[i]
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}

// ListPropertyHistory handles GET /v1/audit/records/{recordId}/properties/{propertyName}.
func (h *Handler) ListPropertyHistory(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	history, err := h.store.Audit.ListPropertyHistory(r.Context(), rc, r.PathValue("recordId"), r.PathValue("propertyName"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	results := make([]any, len(history))
	for i := range history {
		results[i] = history[i]
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}

// GetBulkOperation handles GET /v1/bulk-operations/{operationId}.
func (h *Handler) GetBulkOperation(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	op, err := h.store.Audit.GetBulkOperation(r.Context(), rc, r.PathValue("operationId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, op)
}

// MarkRolledBack handles POST /v1/bulk-operations/{operationId}/rollback.
// This records that an external rollback happened; it does not reverse the
// operation itself.
func (h *Handler) MarkRolledBack(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	if err := h.store.Audit.MarkRolledBack(r.Context(), rc, r.PathValue("operationId")); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
