package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for batch activity. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	batches         *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	results         *prometheus.CounterVec
	droppedMessages *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the instance registered with the global registry.
// Collectors are created once to avoid duplicate registration panics.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers the collectors with reg and panics on conflict.
// Tests should pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "refactor",
				Subsystem: "orchestrator",
				Name:      "batches_total",
				Help:      "Batches finished, by final status.",
			},
			[]string{"status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "refactor",
				Subsystem: "orchestrator",
				Name:      "stage_duration_seconds",
				Help:      "Time spent in dispatch, collect and consolidate.",
				Buckets:   []float64{.01, .1, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "refactor",
				Subsystem: "orchestrator",
				Name:      "results_total",
				Help:      "Capability results folded into a batch.",
			},
			[]string{"capability", "status"},
		),
		droppedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "refactor",
				Subsystem: "orchestrator",
				Name:      "messages_dropped_total",
				Help:      "Result queue messages dropped without being counted toward a batch.",
			},
			[]string{"reason"},
		),
	}

	reg.MustRegister(m.batches, m.stageDuration, m.results, m.droppedMessages)
	return m
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) batchFinished(status string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(status).Inc()
}

func (m *Metrics) resultCollected(capability, status string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(capability, status).Inc()
}

func (m *Metrics) messageDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedMessages.WithLabelValues(reason).Inc()
}
