package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	envelopepkg "github.com/drblury/auditflow/internal/runtime/envelope"
	errspkg "github.com/drblury/auditflow/internal/runtime/errors"
	idspkg "github.com/drblury/auditflow/internal/runtime/ids"
	"github.com/drblury/auditflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/auditflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/auditflow/internal/runtime/metadata"
)

// AuditTopic is the topic every audit envelope is published to.
const AuditTopic = "jms.topic.auditing.event"

const contentTypeJSON = "application/json"

var marshalEnvelope = jsoncodec.Marshal

// Producer emits audit envelopes. Publish never fails from the caller's
// point of view.
type Producer interface {
	Publish(ctx context.Context, env *envelopepkg.Envelope)
}

// AuditPublisher serializes envelopes and hands them to the sink
// synchronously. Failures are logged and counted, never returned.
type AuditPublisher struct {
	publisher message.Publisher
	topic     string
	sink      string
	logger    loggingpkg.ServiceLogger
	metrics   *AuditMetrics
	tracer    trace.Tracer
}

// NewAuditPublisher wires an AuditPublisher onto the sink publisher.
// metrics may be nil.
func NewAuditPublisher(publisher message.Publisher, sink string, logger loggingpkg.ServiceLogger, metrics *AuditMetrics) (*AuditPublisher, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	return &AuditPublisher{
		publisher: publisher,
		topic:     AuditTopic,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("auditflow-publisher"),
	}, nil
}

// NewMessageFromEnvelope converts the envelope into a Watermill message. The
// message UUID is the envelope id and the event name travels as the CPPNAME
// selector attribute.
func NewMessageFromEnvelope(env *envelopepkg.Envelope, md metadatapkg.Metadata) (*message.Message, error) {
	if env == nil {
		return nil, errspkg.ErrEnvelopeRequired
	}

	payload, err := marshalEnvelope(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit envelope: %w", err)
	}

	id := env.ID()
	if id == "" {
		id = idspkg.CreateULID()
	}

	msg := message.NewMessage(id, payload)
	msg.Metadata = md.Merge(metadatapkg.Metadata{
		metadatapkg.KeyEventName:   envelopepkg.EventName,
		metadatapkg.KeyContentType: contentTypeJSON,
	}).With(metadatapkg.KeyCorrelationID, env.CorrelationID()).ToWatermill()
	return msg, nil
}

// Publish sends env to the audit topic. A nil envelope is logged and
// dropped.
func (p *AuditPublisher) Publish(ctx context.Context, env *envelopepkg.Envelope) {
	if env == nil {
		p.logger.Info("Skipping audit publish: envelope is nil", nil)
		p.metrics.RecordSkipped(ReasonNilEnvelope)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fields := loggingpkg.LogFields{
		"audit_id":  env.ID(),
		"timestamp": env.Timestamp,
		"operation": env.OperationName(),
		"topic":     p.topic,
	}

	ctx, span := p.tracer.Start(ctx, "PublishAuditEvent", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", p.sink),
		attribute.String("messaging.destination.name", p.topic),
		attribute.String("audit.id", env.ID()),
	)

	md := metadatapkg.Metadata{}
	if sc := span.SpanContext(); sc.IsValid() {
		md = md.With(metadatapkg.KeyTraceID, sc.TraceID().String()).
			With(metadatapkg.KeySpanID, sc.SpanID().String())
	}

	msg, err := NewMessageFromEnvelope(env, md)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "serialize")
		p.logger.Error("Failed to serialize audit event", err, fields)
		p.metrics.RecordFailed(p.sink, ReasonSerialize, 0)
		return
	}
	msg.SetContext(ctx)

	p.logger.Info("Publishing audit event", fields)
	started := time.Now()
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		p.logger.Error("Failed to publish audit event", err, fields)
		p.metrics.RecordFailed(p.sink, ReasonPublish, time.Since(started))
		return
	}
	took := time.Since(started)
	p.metrics.RecordPublished(p.sink, took)
	fields["duration"] = took.String()
	p.logger.Info("Audit event published", fields)
}
