package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/shramba/internal/metrics"
	"github.com/erazemk/shramba/internal/stats"
	"github.com/erazemk/shramba/internal/store"
)

// NewRouter creates the API router with all endpoints registered. m may be
// nil, in which case /metrics is not served.
func NewRouter(db *sqlx.DB, tokenSecret string, m *metrics.Metrics) http.Handler {
	itemsHandler := &ItemsHandler{DB: db, Metrics: m}
	statsHandler := &StatsHandler{Engine: &stats.Engine{Source: store.Source{DB: db}, Metrics: m}}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(m))
	r.Use(IdentityMiddleware(tokenSecret))

	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemsHandler.List)
			r.Post("/", itemsHandler.Create)
			r.Post("/batch", itemsHandler.CreateBatch)
			r.Delete("/history", itemsHandler.ClearHistory)
			r.Get("/{id}", itemsHandler.Get)
			r.Put("/{id}", itemsHandler.Update)
			r.Delete("/{id}", itemsHandler.Delete)
			r.Post("/{id}/mark-as-used", itemsHandler.MarkUsed)
		})

		r.Get("/stats", statsHandler.Get)
	})

	return r
}
