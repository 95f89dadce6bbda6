package associations

import (
	"net/http"

	"github.com/craftboard/platform/internal/store"
)

// RegisterRoutes adds all association endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store) {
	h := &Handler{store: s}

	mux.HandleFunc("POST /v1/associations/types", h.DefineType)
	mux.HandleFunc("GET /v1/associations/types", h.ListTypes)
	mux.HandleFunc("GET /v1/associations/types/{typeId}", h.GetType)
	mux.HandleFunc("PUT /v1/associations/types/{typeId}/label", h.SetLabel)
	mux.HandleFunc("PUT /v1/associations/{typeId}/{fromId}/{toId}", h.Associate)
	mux.HandleFunc("DELETE /v1/associations/{typeId}/{fromId}/{toId}", h.Dissociate)
	mux.HandleFunc("GET /v1/records/{objectType}/{recordId}/associations", h.List)
}
