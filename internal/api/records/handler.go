package records

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/craftboard/platform/internal/api"
	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/store"
)

// Handler handles record HTTP requests.
type Handler struct {
	store *store.Store
}

const maxBatchSize = 100

// Create handles POST /v1/records/{objectType}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		Properties map[string]string `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	if body.Properties == nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("properties is required", corrID, nil))
		return
	}

	record, err := h.store.Records.Create(r.Context(), rc, objectType, body.Properties)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, record)
}

// Get handles GET /v1/records/{objectType}/{recordId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	recordID := r.PathValue("recordId")
	rc := api.RequestContextFrom(r.Context())

	opts := domain.GetOpts{
		Properties:   parsePropertiesParam(r),
		Associations: r.URL.Query().Get("associations") == "true",
	}
	record, err := h.store.Records.Get(r.Context(), rc, recordID, opts)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, record)
}

// List handles GET /v1/records/{objectType}. Listing is an unfiltered
// search, so it shares the search pagination semantics.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	rc := api.RequestContextFrom(r.Context())

	req := domain.SearchRequest{
		After:      r.URL.Query().Get("after"),
		Properties: parsePropertiesParam(r),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			req.Limit = parsed
		}
	}

	result, err := h.store.Search.Search(r.Context(), rc, objectType, &req)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

// Update handles PATCH /v1/records/{objectType}/{recordId}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	recordID := r.PathValue("recordId")
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		Properties map[string]string `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}

	record, err := h.store.Records.Update(r.Context(), rc, recordID, body.Properties)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, record)
}

// Archive handles DELETE /v1/records/{objectType}/{recordId}.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	recordID := r.PathValue("recordId")
	rc := api.RequestContextFrom(r.Context())

	if err := h.store.Records.Archive(r.Context(), rc, recordID); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unarchive handles POST /v1/records/{objectType}/{recordId}/unarchive.
func (h *Handler) Unarchive(w http.ResponseWriter, r *http.Request) {
	recordID := r.PathValue("recordId")
	rc := api.RequestContextFrom(r.Context())

	if err := h.store.Records.Unarchive(r.Context(), rc, recordID); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	record, err := h.store.Records.Get(r.Context(), rc, recordID, domain.GetOpts{})
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, record)
}

// BatchCreate handles POST /v1/records/{objectType}/batch/create.
func (h *Handler) BatchCreate(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		Inputs []domain.CreateInput `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	if len(body.Inputs) > maxBatchSize {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Batch size exceeds maximum of 100", corrID, nil))
		return
	}
	for _, input := range body.Inputs {
		if input.Properties == nil {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Each input must have a properties field", corrID, nil))
			return
		}
	}

	result, err := h.store.Records.BatchCreate(r.Context(), rc, objectType, body.Inputs)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, result)
}

// BatchUpdate handles POST /v1/records/{objectType}/batch/update.
func (h *Handler) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		Inputs []domain.UpdateInput `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	if len(body.Inputs) > maxBatchSize {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Batch size exceeds maximum of 100", corrID, nil))
		return
	}

	result, err := h.store.Records.BatchUpdate(r.Context(), rc, body.Inputs)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

// Search handles POST /v1/records/{objectType}/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}

	result, err := h.store.Search.Search(r.Context(), rc, objectType, &req)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

func parsePropertiesParam(r *http.Request) []string {
	v := r.URL.Query().Get("properties")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
