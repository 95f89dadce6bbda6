package associations

import (
	"encoding/json"
	"net/http"

	"github.com/craftboard/platform/internal/api"
	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/store"
)

// Handler handles association graph HTTP requests.
type Handler struct {
	store *store.Store
}

// DefineType handles POST /v1/associations/types.
func (h *Handler) DefineType(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var at domain.AssociationType
	if err := json.NewDecoder(r.Body).Decode(&at); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	if at.FromObjectTypeID == "" || at.ToObjectTypeID == "" || at.Name == "" {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("fromObjectTypeId, toObjectTypeId and name are required", corrID, nil))
		return
	}

	created, err := h.store.Associations.DefineType(r.Context(), rc, &at)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// ListTypes handles GET /v1/associations/types.
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.Associations.ListTypes(r.Context())
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	results := make([]any, len(types))
	for i, at := range types {
		results[i] = at
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}

// GetType handles GET /v1/associations/types/{typeId}.
func (h *Handler) GetType(w http.ResponseWriter, r *http.Request) {
	at, err := h.store.Associations.GetType(r.Context(), r.PathValue("typeId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, at)
}

// SetLabel handles PUT /v1/associations/types/{typeId}/label. The override
// applies only to the calling organization.
func (h *Handler) SetLabel(w http.ResponseWriter, r *http.Request) {
	typeID := r.PathValue("typeId")
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		Label        string `json:"label"`
		InverseLabel string `json:"inverseLabel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}

	if err := h.store.Associations.SetOrganizationLabel(r.Context(), rc, typeID, body.Label, body.InverseLabel); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Associate handles PUT /v1/associations/{typeId}/{fromId}/{toId}.
// Re-associating an active pair is a no-op; a dissociated pair is
// reactivated.
func (h *Handler) Associate(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		Properties map[string]string `json:"properties"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
			return
		}
	}

	assoc, err := h.store.Associations.Associate(r.Context(), rc,
		r.PathValue("typeId"), r.PathValue("fromId"), r.PathValue("toId"), body.Properties)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, assoc)
}

// Dissociate handles DELETE /v1/associations/{typeId}/{fromId}/{toId}.
func (h *Handler) Dissociate(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	err := h.store.Associations.Dissociate(r.Context(), rc,
		r.PathValue("typeId"), r.PathValue("fromId"), r.PathValue("toId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /v1/records/{objectType}/{recordId}/associations. The
// direction query parameter selects the endpoint ("from" by default); typeId
// narrows to one association type.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	recordID := r.PathValue("recordId")
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	direction := domain.DirectionFrom
	switch r.URL.Query().Get("direction") {
	case "", "from":
	case "to":
		direction = domain.DirectionTo
	default:
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("direction must be from or to", corrID, nil))
		return
	}

	views, err := h.store.Associations.GetAssociations(r.Context(), rc, recordID, direction, r.URL.Query().Get("typeId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	results := make([]any, len(views))
	for i := range views {
		results[i] = views[i]
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}
