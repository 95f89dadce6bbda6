package admin

import (
	"net/http"
	"time"

	"github.com/craftboard/platform/internal/api"
	"github.com/craftboard/platform/internal/database"
	"github.com/craftboard/platform/internal/seed"
	"github.com/craftboard/platform/internal/store"
)

// Handler serves the operational API at /_ops/. These endpoints are for
// operators, not tenants; they run outside the tenant context.
type Handler struct {
	store           *store.Store
	retentionMonths int
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DB.PingContext(r.Context()); err != nil {
		api.WriteError(w, http.StatusServiceUnavailable, &api.Error{
			Status:        "error",
			Message:       "database unreachable",
			CorrelationID: api.CorrelationID(r.Context()),
			Category:      api.CategoryInternalError,
		})
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Sweep recomputes every list and pipeline counter.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Counters.SweepCounters(r.Context()); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MaintainPartitions creates the current and next audit partitions and drops
// partitions older than the retention window.
func (h *Handler) MaintainPartitions(w http.ResponseWriter, r *http.Request) {
	if err := database.MaintainAuditPartitions(r.Context(), h.store.DB, time.Now().UTC(), h.retentionMonths); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SeedData runs the idempotent bootstrap seed.
func (h *Handler) SeedData(w http.ResponseWriter, r *http.Request) {
	if err := seed.Seed(r.Context(), h.store.DB); err != nil {
		api.WriteError(w, http.StatusInternalServerError, &api.Error{
			Status:        "error",
			Message:       err.Error(),
			CorrelationID: api.CorrelationID(r.Context()),
			Category:      api.CategoryInternalError,
		})
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
