// Package middleware provides net/http middleware for storefront services.
//
// This package includes:
//   - OpenTelemetry server tracing
//   - Prometheus request metrics
//   - Structured request logging with log/slog
//
// All middleware has the chi signature func(http.Handler) http.Handler and
// labels requests by their chi route pattern, not the raw path, so metric
// cardinality stays bounded.
//
// # OpenTelemetry Middleware
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("storefront/upload"),
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	))
//
// The tracer uses the global OpenTelemetry tracer provider. Handlers reach
// the server span through trace.SpanFromContext(r.Context()).
//
// # Prometheus Metrics
//
//   - storefront_http_requests_total: requests by method, route and status
//   - storefront_http_request_duration_seconds: latency by method and route
//   - storefront_http_requests_in_flight: requests being served
//
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
//	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package middleware
