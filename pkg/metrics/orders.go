package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records order placement outcomes.
type OrderMetrics struct {
	placed   *prometheus.CounterVec
	failed   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders committed, by the store that accepted them.",
	}, []string{"store"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Order placements rejected or rolled back, by error code.",
	}, []string{"code"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_place_duration_seconds",
		Help:    "Duration of the order unit of work in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(placed, failed, duration)
	return &OrderMetrics{
		placed:   placed,
		failed:   failed,
		duration: duration,
	}
}

// ObservePlaced counts a committed order and its duration.
func (m *OrderMetrics) ObservePlaced(store string, duration time.Duration) {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.WithLabelValues(normalizeLabel(store)).Inc()
	m.duration.Observe(duration.Seconds())
}

// IncFailed counts a failed placement.
func (m *OrderMetrics) IncFailed(code string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(code)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
