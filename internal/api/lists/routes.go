package lists

import (
	"net/http"

	"github.com/craftboard/platform/internal/store"
)

// RegisterRoutes adds all list endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store) {
	h := &Handler{store: s}

	mux.HandleFunc("POST /v1/lists", h.Create)
	mux.HandleFunc("GET /v1/lists/{listId}", h.Get)
	mux.HandleFunc("DELETE /v1/lists/{listId}", h.Archive)
	mux.HandleFunc("PUT /v1/lists/{listId}/memberships/add", h.AddMembers)
	mux.HandleFunc("PUT /v1/lists/{listId}/memberships/remove", h.RemoveMembers)
	mux.HandleFunc("GET /v1/lists/{listId}/memberships", h.GetMemberships)
	mux.HandleFunc("PUT /v1/lists/{listId}/memberships/{recordId}/pin", h.SetPinned)
	mux.HandleFunc("PUT /v1/lists/{listId}/memberships/{recordId}/exclude", h.SetExcluded)
	mux.HandleFunc("POST /v1/lists/{listId}/refresh", h.Refresh)
}
