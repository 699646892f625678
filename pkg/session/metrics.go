package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetrics holds the Prometheus collectors for a Store.
// A nil *storeMetrics records nothing.
type storeMetrics struct {
	mutationsTotal     *prometheus.CounterVec
	persistErrorsTotal *prometheus.CounterVec
	hydrationsTotal    *prometheus.CounterVec
	activeSubscribers  prometheus.Gauge
}

func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	factory := promauto.With(reg)

	return &storeMetrics{
		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "mutations_total",
			Help:      "Total number of session mutations by operation",
		}, []string{"op"}),

		persistErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "persist_errors_total",
			Help:      "Total number of failed durable storage mirror writes",
		}, []string{"op"}),

		hydrationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "hydrations_total",
			Help:      "Startup hydrations by result (restored, empty, unavailable, failed)",
		}, []string{"result"}),

		activeSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "session",
			Name:      "subscribers",
			Help:      "Number of active session subscribers",
		}),
	}
}

func (m *storeMetrics) mutated(op string) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(op).Inc()
}

func (m *storeMetrics) persistFailed(op string) {
	if m == nil {
		return
	}
	m.persistErrorsTotal.WithLabelValues(op).Inc()
}

func (m *storeMetrics) hydrated(result string) {
	if m == nil {
		return
	}
	m.hydrationsTotal.WithLabelValues(result).Inc()
}

func (m *storeMetrics) subscribers(n int) {
	if m == nil {
		return
	}
	m.activeSubscribers.Set(float64(n))
}
