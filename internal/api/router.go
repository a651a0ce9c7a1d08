package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mdql/internal/taskservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group;
// clients may narrow the stream with ?path=<file>.
func NewRouter(svc *taskservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Task files.
	r.Get("/files", h.ListFiles)
	r.Get("/files/*", h.GetFile)
	r.Get("/summary/*", h.Summary)

	// Queries.
	r.Post("/query", h.Query)
	r.Post("/mql", h.MQL)

	// Edits.
	r.Post("/mutate", h.Mutate)

	// Search across the vault.
	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
