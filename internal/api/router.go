// Package api assembles the HTTP surface: routes, handlers and middleware.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/formbricks/riskmatch/internal/api/handlers"
	"github.com/formbricks/riskmatch/internal/api/middleware"
	"github.com/formbricks/riskmatch/internal/models"
)

// RouterParams holds the handlers and settings the router needs. Records and Backfill may be nil
// (no database); their routes are not registered then. MetricsHandler is mounted at /metrics
// when non-nil.
type RouterParams struct {
	Health     *handlers.HealthHandler
	Records    *handlers.RecordsHandler
	Suppliers  *handlers.SuppliersHandler
	Similarity *handlers.SimilarityHandler
	Backfill   *handlers.BackfillHandler

	MetricsHandler      http.Handler
	APIKey              string
	MaxRequestBodyBytes int64
}

// NewRouter builds the chi router. /health, /ready and /metrics are public; /v1 requires the API
// key when one is configured.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)

	r.Get("/health", p.Health.Check)
	r.Get("/ready", p.Health.Ready)

	if p.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", p.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(p.APIKey))
		r.Use(middleware.MaxBody(p.MaxRequestBodyBytes))

		if p.Similarity != nil {
			r.Post("/similarity/compare", p.Similarity.Compare)
		}

		if p.Suppliers != nil {
			r.Post("/suppliers", p.Suppliers.Create)
			r.Get("/suppliers/{id}", p.Suppliers.Get)
			r.Put("/suppliers/{id}/risks/{riskID}", p.Suppliers.LinkRisk)
			r.Get("/suppliers/{id}/risk-suggestions", p.Suppliers.Suggestions)
		}

		if p.Records != nil {
			for _, kind := range models.RecordKinds() {
				base := "/" + string(kind) + "s"
				r.Post(base, p.Records.Create(kind))
				r.Get(base+"/{id}", p.Records.Get(kind))
				r.Put(base+"/{id}", p.Records.Update(kind))
			}
		}

		if p.Backfill != nil {
			r.Post("/embeddings/backfill", p.Backfill.Run)
		}
	})

	return r
}
