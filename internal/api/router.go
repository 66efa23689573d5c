package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/egret-dev/egret/internal/projectservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth
// group.
func NewRouter(svc *projectservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/projects", h.ListProjects)
	r.Get("/projects/{name}", h.GetProject)
	r.Get("/projects/{name}/raw", h.GetProjectRaw)
	r.Post("/projects/{name}/annotate", h.AnnotateProject)
	r.Post("/projects/{name}/archive", h.ArchiveProject)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
