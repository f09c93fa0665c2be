package delivery

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments delivery attempts so operators can watch per-type
// failure rates without reading the audit trail.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the process-wide delivery metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics(prometheus.DefaultRegisterer)
	})
	return metricsInstance
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sims",
				Subsystem: "delivery",
				Name:      "attempts_total",
				Help:      "Delivery attempts by integration type and terminal status.",
			},
			[]string{"type", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sims",
				Subsystem: "delivery",
				Name:      "duration_seconds",
				Help:      "Plugin send duration by integration type.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"type"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.duration)
	}
	return m
}

func (m *Metrics) observe(record *Record) {
	m.attempts.WithLabelValues(record.IntegrationType, string(record.Status)).Inc()
	m.duration.WithLabelValues(record.IntegrationType).Observe(float64(record.DurationMS) / 1000)
}
