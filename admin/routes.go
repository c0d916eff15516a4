package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the HTTP surface: /metrics when metrics is non-nil,
// /admin/* when handlers is non-nil.
func NewRouter(handlers *AdminHandlers, metrics http.Handler, secret string) http.Handler {
	r := chi.NewRouter()

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	if handlers != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(AuthMiddleware(secret))
			r.Get("/health", handlers.handleHealth)
			r.Get("/stats", handlers.handleStats)
			r.Get("/tables", handlers.handleTables)
			r.Get("/tables/{table}", handlers.handleTable)
		})
		log.Info().Msg("Admin endpoints enabled at /admin/*")
	}

	return r
}
