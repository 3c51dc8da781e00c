package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics covers the connectivity probe and queue replay.
type SyncMetrics struct {
	replayed    *prometheus.CounterVec
	pending     *prometheus.GaugeVec
	online      prometheus.Gauge
	jobDuration *prometheus.HistogramVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	replayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_replayed_total",
		Help: "Queue entries replayed, by target store and result.",
	}, []string{"target", "result"})
	pending := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_pending_entries",
		Help: "Queue entries waiting for replay, by target store.",
	}, []string{"target"})
	online := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_connectivity_online",
		Help: "1 while the system of record is reachable.",
	})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_job_duration_seconds",
		Help:    "Duration of probe, drain and pull steps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	reg.MustRegister(replayed, pending, online, jobDuration)
	return &SyncMetrics{
		replayed:    replayed,
		pending:     pending,
		online:      online,
		jobDuration: jobDuration,
	}
}

// AddReplayed counts replayed entries.
func (m *SyncMetrics) AddReplayed(target, result string, n int) {
	if m == nil || m.replayed == nil || n <= 0 {
		return
	}
	m.replayed.WithLabelValues(normalizeLabel(target), normalizeLabel(result)).Add(float64(n))
}

// SetPending publishes the queue depth for a target.
func (m *SyncMetrics) SetPending(target string, n int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.WithLabelValues(normalizeLabel(target)).Set(float64(n))
}

// SetOnline flips the connectivity gauge.
func (m *SyncMetrics) SetOnline(online bool) {
	if m == nil || m.online == nil {
		return
	}
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

// ObserveJob records the duration of one worker step.
func (m *SyncMetrics) ObserveJob(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}
