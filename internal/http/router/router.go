// Package router assembles the HTTP handler tree: chi middleware, the
// operational endpoints and the /persons routes.
package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aanand-mishra/persons-api/internal/http/handlers/health"
	"github.com/aanand-mishra/persons-api/internal/http/handlers/person"
	"github.com/aanand-mishra/persons-api/internal/http/middleware"
	"github.com/aanand-mishra/persons-api/internal/metrics"
	"github.com/aanand-mishra/persons-api/internal/storage"
)

// Options carries everything New needs. Metrics may be nil, which also
// leaves /metrics unregistered.
type Options struct {
	Repository     storage.Repository
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	AllowedOrigins []string
}

// New returns the application's root handler.
//
// Route table:
//
//	GET    /healthz        → liveness
//	GET    /readyz         → readiness (pings the backend)
//	GET    /metrics        → Prometheus exposition
//	POST   /persons        → create a person
//	GET    /persons        → list all persons
//	GET    /persons/{id}   → get one person
//	PUT    /persons/{id}   → partially update a person
//	DELETE /persons/{id}   → delete a person
func New(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// chi requires every Use before the first route.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}

	r.Get("/healthz", health.Live())
	r.Get("/readyz", health.Ready(opts.Repository))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	person.Register(r, opts.Repository, opts.Metrics)

	return r
}
