package records

import (
	"net/http"

	"github.com/craftboard/platform/internal/store"
)

// RegisterRoutes adds all record endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store) {
	h := &Handler{store: s}

	mux.HandleFunc("GET /v1/records/{objectType}", h.List)
	mux.HandleFunc("POST /v1/records/{objectType}", h.Create)
	mux.HandleFunc("GET /v1/records/{objectType}/{recordId}", h.Get)
	mux.HandleFunc("PATCH /v1/records/{objectType}/{recordId}", h.Update)
	mux.HandleFunc("DELETE /v1/records/{objectType}/{recordId}", h.Archive)
	mux.HandleFunc("POST /v1/records/{objectType}/{recordId}/unarchive", h.Unarchive)
	mux.HandleFunc("POST /v1/records/{objectType}/search", h.Search)
	mux.HandleFunc("POST /v1/records/{objectType}/batch/create", h.BatchCreate)
	mux.HandleFunc("POST /v1/records/{objectType}/batch/update", h.BatchUpdate)
}
