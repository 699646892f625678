package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newMetricsRouter(reg prometheus.Registerer) http.Handler {
	r := chi.NewRouter()
	r.Use(Prometheus(WithRegistry(reg)))
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	r.Get("/silent", func(w http.ResponseWriter, r *http.Request) {})
	return r
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPrometheus_LabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newMetricsRouter(reg)

	serve(h, http.MethodGet, "/products/1")
	serve(h, http.MethodGet, "/products/2")
	serve(h, http.MethodPost, "/fail")
	serve(h, http.MethodGet, "/silent")
	serve(h, http.MethodGet, "/nowhere")

	m := metricsFor(MetricsConfig{Registry: reg})
	require.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/products/{id}", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/fail", "500")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/silent", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", unmatchedRoute, "404")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))

	count, err := testutil.GatherAndCount(reg, "storefront_http_request_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 4, count)
}

func TestPrometheus_SharesCollectorsPerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	require.NotPanics(t, func() {
		_ = Prometheus(WithRegistry(reg))
		_ = Prometheus(WithRegistry(reg))
	})
	require.Same(t, metricsFor(MetricsConfig{Registry: reg}), metricsFor(MetricsConfig{Registry: reg}))
}

func TestPrometheus_CustomNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(Prometheus(WithRegistry(reg), WithNamespace("shop"), WithSubsystem("api"), WithConstLabels(prometheus.Labels{"service": "upload"})))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {})

	serve(r, http.MethodGet, "/")

	count, err := testutil.GatherAndCount(reg, "shop_api_requests_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestPrometheus_OutsideChi(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := Prometheus(WithRegistry(reg))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := serve(h, http.MethodPut, "/x")
	require.Equal(t, http.StatusAccepted, rec.Code)

	m := metricsFor(MetricsConfig{Registry: reg})
	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("PUT", unmatchedRoute, "202")))
}
