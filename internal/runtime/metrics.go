package runtime

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons attached to the failed and skipped counters.
const (
	ReasonSerialize     = "serialize"
	ReasonPublish       = "publish"
	ReasonNilEnvelope   = "nil_envelope"
	ReasonExcludedPath  = "excluded_path"
	ReasonEmptyResponse = "empty_response"
)

// AuditMetrics tracks audit publishing statistics. All methods are safe on a
// nil receiver so a service with metrics disabled records nothing.
type AuditMetrics struct {
	mu sync.Mutex

	publishedTotal  *prometheus.CounterVec
	failedTotal     *prometheus.CounterVec
	skippedTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	registered bool
}

func newAuditCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auditflow",
			Subsystem: "audit",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewAuditMetrics creates the collectors. A nil registerer means the
// Prometheus default registry.
func NewAuditMetrics(registerer prometheus.Registerer) *AuditMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &AuditMetrics{
		registerer:     registerer,
		gatherer:       gatherer,
		publishedTotal: newAuditCounterVec("published_total", "Total number of audit events handed to the sink", []string{"sink"}),
		failedTotal:    newAuditCounterVec("failed_total", "Total number of audit events lost to a serialization or sink failure", []string{"sink", "reason"}),
		skippedTotal:   newAuditCounterVec("skipped_total", "Total number of audit events not produced", []string{"reason"}),
		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "auditflow",
				Subsystem: "audit",
				Name:      "publish_duration_seconds",
				Help:      "Time spent publishing one audit event, failures included",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
			},
			[]string{"sink"},
		),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *AuditMetrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.publishedTotal,
		m.failedTotal,
		m.skippedTotal,
		m.publishDuration,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordPublished records a successful publish and its latency.
func (m *AuditMetrics) RecordPublished(sink string, took time.Duration) {
	if m == nil {
		return
	}
	m.publishedTotal.WithLabelValues(sink).Inc()
	m.publishDuration.WithLabelValues(sink).Observe(took.Seconds())
}

// RecordFailed records a lost event. took is zero when the event never
// reached the sink.
func (m *AuditMetrics) RecordFailed(sink, reason string, took time.Duration) {
	if m == nil {
		return
	}
	m.failedTotal.WithLabelValues(sink, reason).Inc()
	if took > 0 {
		m.publishDuration.WithLabelValues(sink).Observe(took.Seconds())
	}
}

// RecordSkipped records an event that was deliberately not produced.
func (m *AuditMetrics) RecordSkipped(reason string) {
	if m == nil {
		return
	}
	m.skippedTotal.WithLabelValues(reason).Inc()
}

// Handler exposes the gatherer backing the registerer.
func (m *AuditMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Reset clears all series (useful for testing).
func (m *AuditMetrics) Reset() {
	if m == nil {
		return
	}
	m.publishedTotal.Reset()
	m.failedTotal.Reset()
	m.skippedTotal.Reset()
	m.publishDuration.Reset()
}
