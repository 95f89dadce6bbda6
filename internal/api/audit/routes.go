package audit

import (
	"net/http"

	"github.com/craftboard/platform/internal/store"
)

// RegisterRoutes adds all audit endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store) {
	h := &Handler{store: s}

	mux.HandleFunc("GET /v1/audit/{entityType}/{entityId}", h.ListByEntity)
	mux.HandleFunc("GET /v1/audit/records/{recordId}/properties/{propertyName}", h.ListPropertyHistory)
	mux.HandleFunc("GET /v1/bulk-operations/{operationId}", h.GetBulkOperation)
	mux.HandleFunc("POST /v1/bulk-operations/{operationId}/rollback", h.MarkRolledBack)
}
