package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/billbuddy/app"
	"github.com/upb/billbuddy/handlers"
	"github.com/upb/billbuddy/middleware"
	"github.com/upb/billbuddy/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ServiceName names the server in traces
const ServiceName = "billbuddy"

const defaultRequestTimeout = 60 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	timeout := cfg.Server.WriteTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// The health checker must stay a nil interface when there is no database
	var db handlers.HealthChecker
	if deps.DB != nil {
		db = deps.DB
	}
	health := handlers.NewHealthHandler(db, deps.Plans, deps.ProviderNames(), deps.Logger)
	queries := handlers.NewQueryHandler(deps.Query, deps.Logger)
	plans := handlers.NewPlanHandler(deps.Catalog, deps.Logger)

	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	r.Route("/api/billbuddy", func(r chi.Router) {
		r.Post("/ask", queries.HandleAsk)
		r.Get("/health", health.HandleBanner)

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", plans.HandleList)
			r.Post("/", plans.HandleCreate)
			r.Post("/reindex", plans.HandleReindexMissing)
			r.Get("/{id}", plans.HandleGet)
			r.Post("/{id}/reindex", plans.HandleReindex)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	if cfg.Observability.TracingEnabled {
		return otelhttp.NewHandler(r, ServiceName)
	}
	return r
}
