package admin

import (
	"net/http"

	"github.com/craftboard/platform/internal/store"
)

// RegisterRoutes registers all operational endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, retentionMonths int) {
	h := &Handler{store: s, retentionMonths: retentionMonths}

	mux.HandleFunc("GET /_ops/health", h.Health)
	mux.HandleFunc("POST /_ops/sweep", h.Sweep)
	mux.HandleFunc("POST /_ops/partitions", h.MaintainPartitions)
	mux.HandleFunc("POST /_ops/seed", h.SeedData)
}
