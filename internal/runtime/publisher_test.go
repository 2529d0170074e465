package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	envelopepkg "github.com/drblury/auditflow/internal/runtime/envelope"
	errspkg "github.com/drblury/auditflow/internal/runtime/errors"
	metadatapkg "github.com/drblury/auditflow/internal/runtime/metadata"
)

func testEnvelope() *envelopepkg.Envelope {
	b := envelopepkg.NewBuilder("CJSCPPUID", "CPPCLIENTCORRELATIONID")
	return b.FromRequest(envelopepkg.RequestContext{
		ContextPath: "/orders-service",
		Headers: map[string]string{
			"Content-Type":           "application/json",
			"CJSCPPUID":              "user-1",
			"CPPCLIENTCORRELATIONID": "corr-1",
		},
		Body: `{"data":"x"}`,
	})
}

func newTestPublisher(t *testing.T, pub *recordingPublisher, log *recordingLogger) (*AuditPublisher, *AuditMetrics) {
	t.Helper()
	metrics := NewAuditMetrics(prometheus.NewRegistry())
	if err := metrics.Register(); err != nil {
		t.Fatalf("register metrics: %v", err)
	}
	p, err := NewAuditPublisher(pub, "channel", log, metrics)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p, metrics
}

func TestNewAuditPublisherValidations(t *testing.T) {
	if _, err := NewAuditPublisher(nil, "channel", newTestLogger(), nil); !errors.Is(err, errspkg.ErrPublisherRequired) {
		t.Fatalf("expected publisher required error, got %v", err)
	}
	if _, err := NewAuditPublisher(&recordingPublisher{}, "channel", nil, nil); !errors.Is(err, errspkg.ErrLoggerRequired) {
		t.Fatalf("expected logger required error, got %v", err)
	}
}

func TestNewMessageFromEnvelope(t *testing.T) {
	if _, err := NewMessageFromEnvelope(nil, nil); !errors.Is(err, errspkg.ErrEnvelopeRequired) {
		t.Fatalf("expected envelope required error, got %v", err)
	}

	env := testEnvelope()
	msg, err := NewMessageFromEnvelope(env, metadatapkg.Metadata{metadatapkg.KeyTraceID: "trace"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.UUID != env.ID() {
		t.Fatalf("expected message uuid %q, got %q", env.ID(), msg.UUID)
	}
	if got := msg.Metadata.Get(metadatapkg.KeyEventName); got != "audit.events.audit-recorded" {
		t.Fatalf("expected selector attribute, got %q", got)
	}
	if got := msg.Metadata.Get(metadatapkg.KeyCorrelationID); got != "corr-1" {
		t.Fatalf("expected correlation id, got %q", got)
	}
	if got := msg.Metadata.Get(metadatapkg.KeyTraceID); got != "trace" {
		t.Fatalf("expected extra metadata to be kept, got %q", got)
	}
	if msg.Metadata.Get(metadatapkg.KeyContentType) != "application/json" {
		t.Fatalf("expected json content type, got %#v", msg.Metadata)
	}
}

func TestNewMessageFromEnvelopeWithoutCorrelation(t *testing.T) {
	env := envelopepkg.NewBuilder("CJSCPPUID", "CPPCLIENTCORRELATIONID").FromResponse(envelopepkg.ResponseContext{Body: "ok"})
	msg, err := NewMessageFromEnvelope(env, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.Metadata[metadatapkg.KeyCorrelationID]; ok {
		t.Fatalf("expected no correlation attribute, got %#v", msg.Metadata)
	}
}

func TestAuditPublisherPublish(t *testing.T) {
	pub := &recordingPublisher{}
	log := &recordingLogger{}
	p, metrics := newTestPublisher(t, pub, log)

	env := testEnvelope()
	p.Publish(context.Background(), env)

	if len(pub.topics) != 1 || pub.topics[0] != AuditTopic {
		t.Fatalf("expected one publish to %s, got %v", AuditTopic, pub.topics)
	}
	got := pub.Envelopes()[0]
	if got.ID() != env.ID() || got.Content.Payload["data"] != "x" {
		t.Fatalf("unexpected envelope on the wire: %#v", got)
	}

	infos := log.byLevel("info")
	if len(infos) != 2 {
		t.Fatalf("expected a log line before and after publishing, got %d", len(infos))
	}
	for _, e := range infos {
		if e.fields["audit_id"] != env.ID() || e.fields["timestamp"] == nil {
			t.Fatalf("expected id and timestamp on %q, got %#v", e.msg, e.fields)
		}
	}
	if v := testutil.ToFloat64(metrics.publishedTotal.WithLabelValues("channel")); v != 1 {
		t.Fatalf("expected published counter 1, got %v", v)
	}
}

func TestAuditPublisherSwallowsSinkErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("AMQP connection refused")}
	log := &recordingLogger{}
	p, metrics := newTestPublisher(t, pub, log)

	env := testEnvelope()
	p.Publish(context.Background(), env)

	errs := log.byLevel("error")
	if len(errs) != 1 {
		t.Fatalf("expected one error line, got %d", len(errs))
	}
	if errs[0].fields["audit_id"] != env.ID() || errs[0].err == nil {
		t.Fatalf("expected error with the envelope id, got %#v", errs[0])
	}
	if v := testutil.ToFloat64(metrics.failedTotal.WithLabelValues("channel", ReasonPublish)); v != 1 {
		t.Fatalf("expected failed counter 1, got %v", v)
	}
}

func TestAuditPublisherSwallowsSerializationErrors(t *testing.T) {
	orig := marshalEnvelope
	t.Cleanup(func() { marshalEnvelope = orig })
	marshalEnvelope = func(any) ([]byte, error) { return nil, errors.New("unsupported value") }

	pub := &recordingPublisher{}
	log := &recordingLogger{}
	p, metrics := newTestPublisher(t, pub, log)

	env := testEnvelope()
	p.Publish(context.Background(), env)

	if len(pub.Messages()) != 0 {
		t.Fatal("expected nothing to be published")
	}
	errs := log.byLevel("error")
	if len(errs) != 1 || errs[0].fields["audit_id"] != env.ID() {
		t.Fatalf("expected serialization failure logged with id, got %#v", errs)
	}
	if v := testutil.ToFloat64(metrics.failedTotal.WithLabelValues("channel", ReasonSerialize)); v != 1 {
		t.Fatalf("expected serialize counter 1, got %v", v)
	}
}

func TestAuditPublisherNilEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	log := &recordingLogger{}
	p, metrics := newTestPublisher(t, pub, log)

	p.Publish(context.Background(), nil)

	if len(pub.Messages()) != 0 {
		t.Fatal("expected nothing to be published")
	}
	if len(log.byLevel("info")) != 1 {
		t.Fatal("expected the nil envelope to be logged")
	}
	if v := testutil.ToFloat64(metrics.skippedTotal.WithLabelValues(ReasonNilEnvelope)); v != 1 {
		t.Fatalf("expected skipped counter 1, got %v", v)
	}
}
