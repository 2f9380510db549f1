package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gridcat/internal/collectionservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *collectionservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Configured collections and their ledger.
	r.Get("/collections", h.ListCollections)
	r.Post("/collections/{name}/update", h.UpdateCollection)
	r.Get("/collections/{name}/runs", h.ListRuns)
	r.Get("/nodes", h.ListNodes)

	// Index reads.
	r.Get("/index/kind", h.IndexKind)
	r.Get("/index/children", h.IndexChildren)
	r.Get("/index/mfiles", h.IndexMFiles)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
