package schemas

import (
	"net/http"

	"github.com/craftboard/platform/internal/store"
)

// RegisterRoutes registers all schema endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, registry store.Registry) {
	h := &Handler{registry: registry}

	mux.HandleFunc("GET /v1/schemas", h.List)
	mux.HandleFunc("POST /v1/schemas", h.Create)
	mux.HandleFunc("GET /v1/schemas/{objectType}", h.Get)
	mux.HandleFunc("POST /v1/schemas/{objectType}/properties", h.AddProperty)
	mux.HandleFunc("PATCH /v1/schemas/{objectType}/properties/{propertyName}", h.OverrideProperty)
	mux.HandleFunc("POST /v1/schemas/{objectType}/migrations", h.Migrate)
	mux.HandleFunc("GET /v1/schemas/{objectType}/migrations", h.ListMigrations)
}
