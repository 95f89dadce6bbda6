package pipelines

import (
	"net/http"

	"github.com/craftboard/platform/internal/store"
)

// RegisterRoutes adds all pipeline endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store) {
	h := &Handler{store: s}

	mux.HandleFunc("POST /v1/pipelines", h.Create)
	mux.HandleFunc("GET /v1/pipelines", h.List)
	mux.HandleFunc("GET /v1/pipelines/{pipelineId}", h.Get)
	mux.HandleFunc("DELETE /v1/pipelines/{pipelineId}", h.Archive)
	mux.HandleFunc("PUT /v1/pipelines/{pipelineId}/records/{recordId}/stage", h.MoveToStage)
	mux.HandleFunc("GET /v1/pipelines/{pipelineId}/records/{recordId}/stage", h.GetRecordStage)
	mux.HandleFunc("DELETE /v1/pipelines/{pipelineId}/records/{recordId}", h.RemoveFromPipeline)
	mux.HandleFunc("GET /v1/pipelines/{pipelineId}/records/{recordId}/history", h.ListStageHistory)
	mux.HandleFunc("POST /v1/pipelines/{pipelineId}/automations", h.CreateAutomation)
	mux.HandleFunc("GET /v1/pipelines/{pipelineId}/automations", h.ListAutomations)
	mux.HandleFunc("PATCH /v1/pipelines/{pipelineId}/automations/{automationId}", h.SetAutomationEnabled)
}
