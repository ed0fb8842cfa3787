package adapthttp

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"textrpg/internal/app"
)

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	query  *app.QueryService
	mut    *app.MutationService
	logger *slog.Logger
}

// New creates a Server wired to the given application services.
func New(query *app.QueryService, mut *app.MutationService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{query: query, mut: mut, logger: logger}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(withNoCache)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})

		r.Route("/characters", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/", s.handleList)
			r.Get("/count", s.handleCount)
			r.Get("/by-name/{name}", s.handleGetByName)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Patch("/", s.handleUpdate)
				r.Delete("/", s.handleDelete)
				r.Post("/experience", s.handleExperience)
				r.Post("/damage", s.handleDamage)
				r.Post("/heal", s.handleHeal)
			})
		})
	})
	return r
}
