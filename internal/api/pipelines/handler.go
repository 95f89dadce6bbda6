package pipelines

import (
	"encoding/json"
	"net/http"

	"github.com/craftboard/platform/internal/api"
	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/store"
)

// Handler handles pipeline and stage HTTP requests.
type Handler struct {
	store *store.Store
}

// Create handles POST /v1/pipelines.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var p domain.Pipeline
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	if p.ObjectDefinitionID == "" || p.Label == "" {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("objectDefinitionId and label are required", corrID, nil))
		return
	}

	created, err := h.store.Pipelines.Create(r.Context(), rc, &p)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// Get handles GET /v1/pipelines/{pipelineId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	p, err := h.store.Pipelines.Get(r.Context(), rc, r.PathValue("pipelineId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

// List handles GET /v1/pipelines?objectDefinitionId=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	defID := r.URL.Query().Get("objectDefinitionId")
	if defID == "" {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("objectDefinitionId is required", corrID, nil))
		return
	}

	pipelines, err := h.store.Pipelines.List(r.Context(), rc, defID)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	results := make([]any, len(pipelines))
	for i, p := range pipelines {
		results[i] = p
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}

// Archive handles DELETE /v1/pipelines/{pipelineId}.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	if err := h.store.Pipelines.Archive(r.Context(), rc, r.PathValue("pipelineId")); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveToStage handles PUT /v1/pipelines/{pipelineId}/records/{recordId}/stage.
func (h *Handler) MoveToStage(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		StageID string `json:"stageId"`
		domain.MoveInput
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	if body.StageID == "" {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("stageId is required", corrID, nil))
		return
	}

	rs, err := h.store.Pipelines.MoveToStage(r.Context(), rc,
		r.PathValue("recordId"), r.PathValue("pipelineId"), body.StageID, body.MoveInput)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rs)
}

// GetRecordStage handles GET /v1/pipelines/{pipelineId}/records/{recordId}/stage.
func (h *Handler) GetRecordStage(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	rs, err := h.store.Pipelines.GetRecordStage(r.Context(), rc, r.PathValue("recordId"), r.PathValue("pipelineId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rs)
}

// RemoveFromPipeline handles DELETE /v1/pipelines/{pipelineId}/records/{recordId}.
func (h *Handler) RemoveFromPipeline(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	if err := h.store.Pipelines.RemoveFromPipeline(r.Context(), rc, r.PathValue("recordId"), r.PathValue("pipelineId")); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListStageHistory handles GET /v1/pipelines/{pipelineId}/records/{recordId}/history.
func (h *Handler) ListStageHistory(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	history, err := h.store.Pipelines.ListStageHistory(r.Context(), rc, r.PathValue("recordId"), r.PathValue("pipelineId"))
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

// CreateAutomation handles POST /v1/pipelines/{pipelineId}/automations.
func (h *Handler) CreateAutomation(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var a domain.StageAutomation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	a.PipelineID = r.PathValue("pipelineId")

	created, err := h.store.Pipelines.CreateAutomation(r.Context(), rc, &a)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// ListAutomations handles GET /v1/pipelines/{pipelineId}/automations.
func (h *Handler) ListAutomations(w http.ResponseWriter, r *http.Request) {
	rc := api.RequestContextFrom(r.Context())

	automations, err := h.store.Pipelines.ListAutomations(r.Context(), rc, r.PathValue("pipelineId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	results := make([]any, len(automations))
	for i := range automations {
		results[i] = automations[i]
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}

// SetAutomationEnabled handles PATCH /v1/pipelines/{pipelineId}/automations/{automationId}.
func (h *Handler) SetAutomationEnabled(w http.ResponseWriter, r *http.Request) {
	corrID := api.CorrelationID(r.Context())
	rc := api.RequestContextFrom(r.Context())

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}

	if err := h.store.Pipelines.SetAutomationEnabled(r.Context(), rc, r.PathValue("automationId"), body.Enabled); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
