package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type JanitorMetrics struct {
	registry *prometheus.Registry

	sweepTotal      *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	artifactsSwept  *prometheus.CounterVec
	documentsReaped *prometheus.CounterVec
}

func NewJanitorMetrics(service string) *JanitorMetrics {
	registry := prometheus.NewRegistry()

	sweepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handoff",
			Subsystem: "janitor",
			Name:      "sweeps_total",
			Help:      "Total janitor sweep runs by status.",
		},
		[]string{"service", "status"},
	)
	sweepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "handoff",
			Subsystem: "janitor",
			Name:      "sweep_duration_seconds",
			Help:      "Janitor sweep duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	artifactsSwept := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handoff",
			Subsystem: "janitor",
			Name:      "staged_artifacts_removed_total",
			Help:      "Total staged plaintext artifacts removed past their TTL.",
		},
		[]string{"service"},
	)
	documentsReaped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handoff",
			Subsystem: "janitor",
			Name:      "documents_expired_total",
			Help:      "Total pending documents flipped to expired.",
		},
		[]string{"service"},
	)

	registry.MustRegister(sweepTotal, sweepDuration, artifactsSwept, documentsReaped)

	return &JanitorMetrics{
		registry:        registry,
		sweepTotal:      sweepTotal,
		sweepDuration:   sweepDuration,
		artifactsSwept:  artifactsSwept,
		documentsReaped: documentsReaped,
	}
}

func (m *JanitorMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *JanitorMetrics) FinishSweep(service string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sweepTotal.WithLabelValues(service, status).Inc()
	m.sweepDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *JanitorMetrics) AddArtifactsRemoved(service string, n int) {
	if n <= 0 {
		return
	}
	m.artifactsSwept.WithLabelValues(service).Add(float64(n))
}

func (m *JanitorMetrics) AddDocumentsExpired(service string, n int64) {
	if n <= 0 {
		return
	}
	m.documentsReaped.WithLabelValues(service).Add(float64(n))
}
