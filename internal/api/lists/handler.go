package lists

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/craftboard/platform/internal/api"
	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/store"
)

// Handler handles list HTTP requests.
type Handler struct {
	store *store.Store
}

// Create handles POST /v1/lists.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var l domain.List
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	if l.Name == "" || l.ObjectDefinitionID == "" {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("name and objectDefinitionId are required", corrID, nil))
		return
	}

	created, err := h.store.Lists.Create(r.Context(), rc, &l)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// Get handles GET /v1/lists/{listId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	l, err := h.store.Lists.Get(r.Context(), rc, r.PathValue("listId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, l)
}

// Archive handles DELETE /v1/lists/{listId}.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	if err := h.store.Lists.Archive(r.Context(), rc, r.PathValue("listId")); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMembers handles PUT /v1/lists/{listId}/memberships/add.
func (h *Handler) AddMembers(w http.ResponseWriter, r *http.Request) {
	h.mutateMembers(w, r, h.store.Lists.AddMembers)
}

// RemoveMembers handles PUT /v1/lists/{listId}/memberships/remove.
func (h *Handler) RemoveMembers(w http.ResponseWriter, r *http.Request) {
	h.mutateMembers(w, r, h.store.Lists.RemoveMembers)
}

type memberOp func(ctx context.Context, rc domain.RequestContext, listID string, recordIDs []string) (*domain.BatchResult, error)

func (h *Handler) mutateMembers(w http.ResponseWriter, r *http.Request, op memberOp) {
	listID := r.PathValue("listId")
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		RecordIDs []string `json:"recordIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	if len(body.RecordIDs) == 0 {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("recordIds is required", corrID, nil))
		return
	}

	result, err := op(r.Context(), rc, listID, body.RecordIDs)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

// SetPinned handles PUT /v1/lists/{listId}/memberships/{recordId}/pin.
func (h *Handler) SetPinned(w http.ResponseWriter, r *http.Request) {
	h.setOverride(w, r, h.store.Lists.SetPinned)
}

// SetExcluded handles PUT /v1/lists/{listId}/memberships/{recordId}/exclude.
func (h *Handler) SetExcluded(w http.ResponseWriter, r *http.Request) {
	h.setOverride(w, r, h.store.Lists.SetExcluded)
}

type overrideOp func(ctx context.Context, rc domain.RequestContext, listID, recordID string, value bool) error

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request, op overrideOp) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		Value bool `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}

	if err := op(r.Context(), rc, r.PathValue("listId"), r.PathValue("recordId"), body.Value); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMemberships handles GET /v1/lists/{listId}/memberships.
func (h *Handler) GetMemberships(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	page, err := h.store.Lists.GetMemberships(r.Context(), rc, r.PathValue("listId"), r.URL.Query().Get("after"), limit)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, page)
}

// Refresh handles POST /v1/lists/{listId}/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	count, err := h.store.Lists.RefreshDynamic(r.Context(), rc, r.PathValue("listId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]int{"memberCount": count})
}
