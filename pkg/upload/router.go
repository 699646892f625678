package upload

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/storefront/pkg/middleware"
)

// DefaultAllowedOrigin is the storefront web client's dev server.
const DefaultAllowedOrigin = "http://localhost:5173"

// RouterConfig configures the upload service router.
type RouterConfig struct {
	// Store receives uploaded files. Required.
	Store Store

	// Routes are the upload endpoints. Default: ImageRoute() only.
	Routes []Route

	// Authorizer authenticates uploaders. Nil allows anonymous uploads.
	Authorizer Authorizer

	// OnComplete runs after each stored file. Default: log it.
	OnComplete CompletionFunc

	// AllowedOrigins are the CORS origins. Default: DefaultAllowedOrigin.
	AllowedOrigins []string

	// Registry receives HTTP metrics and backs /metrics.
	// Default: the global Prometheus registry.
	Registry *prometheus.Registry

	// Logger is the service logger.
	Logger *slog.Logger
}

// Router returns the upload service:
//
//	POST /api/upload/{slug}  one endpoint per route
//	GET  /healthz
//	GET  /metrics
func Router(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "upload")
	}
	if len(cfg.Routes) == 0 {
		cfg.Routes = []Route{ImageRoute()}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{DefaultAllowedOrigin}
	}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if cfg.Registry != nil {
		registerer, gatherer = cfg.Registry, cfg.Registry
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Prometheus(middleware.WithRegistry(registerer), middleware.WithSubsystem("upload")))
	r.Use(middleware.OpenTelemetry(
		middleware.WithTracerName("storefront/upload"),
		middleware.WithRequestFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
	))

	opts := []HandlerOption{
		WithAuthorizer(cfg.Authorizer),
		WithLogger(cfg.Logger),
		WithOnComplete(cfg.OnComplete),
	}
	for _, route := range cfg.Routes {
		r.Method(http.MethodPost, "/api/upload/"+route.Slug, Handler(cfg.Store, route, opts...))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
