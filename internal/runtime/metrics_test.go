package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuditMetrics(reg)
	require.NoError(t, m.Register())

	m.RecordPublished("rabbitmq", 5*time.Millisecond)
	m.RecordPublished("rabbitmq", 7*time.Millisecond)
	m.RecordFailed("rabbitmq", ReasonPublish, 15*time.Second)
	m.RecordFailed("rabbitmq", ReasonSerialize, 0)
	m.RecordSkipped(ReasonExcludedPath)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.publishedTotal.WithLabelValues("rabbitmq")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failedTotal.WithLabelValues("rabbitmq", ReasonPublish)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failedTotal.WithLabelValues("rabbitmq", ReasonSerialize)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skippedTotal.WithLabelValues(ReasonExcludedPath)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.publishDuration), "one latency series per sink")
}

func TestAuditMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, NewAuditMetrics(reg).Register())
	require.NoError(t, NewAuditMetrics(reg).Register(), "an already registered collector is not an error")
}

func TestAuditMetrics_NilSafe(t *testing.T) {
	var m *AuditMetrics
	assert.NoError(t, m.Register())
	m.RecordPublished("channel", time.Millisecond)
	m.RecordFailed("channel", ReasonPublish, 0)
	m.RecordSkipped(ReasonNilEnvelope)
	m.Reset()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuditMetrics(reg)
	require.NoError(t, m.Register())
	m.RecordPublished("kafka", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `auditflow_audit_published_total{sink="kafka"} 1`)
}
