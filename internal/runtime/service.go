package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/auditflow/internal/runtime/config"
	"github.com/drblury/auditflow/internal/runtime/contract"
	envelopepkg "github.com/drblury/auditflow/internal/runtime/envelope"
	errspkg "github.com/drblury/auditflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/auditflow/internal/runtime/logging"
	transportpkg "github.com/drblury/auditflow/internal/runtime/transport"
	sinks "github.com/drblury/auditflow/transport"
)

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to get the defaults.
type ServiceDependencies struct {
	// TransportFactory opens the sink. Defaults to the transport registry.
	TransportFactory transportpkg.Factory
	// Registerer receives the audit metrics. Setting it enables metrics even
	// when MetricsEnabled is false.
	Registerer prometheus.Registerer
	// Producer replaces the sink publisher entirely; no transport is built.
	Producer Producer
	// Contract replaces loading the OpenAPI document named in the config.
	Contract *contract.Compiled
}

// Service is the assembled audit pipeline: contract resolver, envelope
// builder and publisher behind an HTTP middleware.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	enabled     bool
	contextPath string

	builder  *envelopepkg.Builder
	contract *contract.Compiled
	producer Producer
	metrics  *AuditMetrics

	publisher  message.Publisher
	subscriber message.Subscriber
	endpoints  []string

	closeOnce sync.Once
	closeErr  error
}

// NewService assembles the audit pipeline and panics on a startup error.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService assembles the audit pipeline. Invalid configuration, a
// missing or malformed contract and an unreachable sink are all reported
// here, before any request is served. Start from configpkg.Defaults or
// configpkg.Load: a zero Config has Enabled false and yields a pass-through
// middleware.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c := conf.WithDefaults()
	log.Info("Creating audit service", loggingpkg.LogFields{
		"enabled":       c.Enabled,
		"pubsub_system": c.PubSubSystem,
		"config":        c.String(),
	})

	s := &Service{
		Conf:        &c,
		Logger:      log,
		enabled:     c.Enabled,
		contextPath: normalizeContextPath(c.HTTP.ContextPath),
		builder:     envelopepkg.NewBuilder(c.HTTP.UserIDHeader, c.HTTP.ClientCorrelationHeader),
		contract:    contract.Empty(),
	}
	if !c.Enabled {
		log.Info("Audit disabled, requests pass through unaudited", nil)
		return s, nil
	}

	if err := c.Validate(); err != nil {
		return nil, errspkg.ConfigValidationError{Err: err}
	}
	if err := s.checkCapabilities(); err != nil {
		return nil, errspkg.ConfigValidationError{Err: err}
	}

	if err := s.loadContract(deps.Contract); err != nil {
		return nil, err
	}

	if c.MetricsEnabled || deps.Registerer != nil {
		s.metrics = NewAuditMetrics(deps.Registerer)
		if err := s.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register audit metrics: %w", err)
		}
	}

	if err := s.openSink(ctx, deps); err != nil {
		return nil, err
	}

	log.Info("Audit service ready", loggingpkg.LogFields{
		"pubsub_system": c.PubSubSystem,
		"endpoints":     s.endpoints,
		"topic":         AuditTopic,
		"templates":     s.contract.Len(),
	})
	return s, nil
}

func (s *Service) checkCapabilities() error {
	name := s.Conf.PubSubSystem
	if !sinks.DefaultRegistry.Has(name) {
		return nil
	}
	caps := sinks.GetCapabilities(name)
	if s.Conf.SSLEnabled && !caps.SupportsTLS {
		return fmt.Errorf("pubsub-system %q does not support ssl-enabled", name)
	}
	if s.Conf.HA && !caps.SupportsHA {
		s.Logger.Info("Sink has no HA support, ha is ignored", loggingpkg.LogFields{"pubsub_system": name})
	}
	if !caps.SupportsSelector() {
		s.Logger.Info("Sink cannot carry the event name attribute, subscribers must decode envelopes to filter", loggingpkg.LogFields{"pubsub_system": name})
	}
	return nil
}

func (s *Service) loadContract(preloaded *contract.Compiled) error {
	switch {
	case preloaded != nil:
		s.contract = preloaded
	case s.Conf.HTTP.Enabled:
		compiled, err := contract.Load(s.Conf.HTTP.OpenAPISpec)
		if err != nil {
			return fmt.Errorf("load api contract %q: %w", s.Conf.HTTP.OpenAPISpec, err)
		}
		s.contract = compiled
	}
	s.Logger.Debug("Path parameter templates compiled", loggingpkg.LogFields{"templates": s.contract.Templates()})
	return nil
}

func (s *Service) openSink(ctx context.Context, deps ServiceDependencies) error {
	if deps.Producer != nil {
		s.producer = deps.Producer
		s.endpoints = []string{"custom"}
		return nil
	}

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	tr, err := factory.Build(ctx, s.Conf, loggingpkg.NewWatermillAdapter(s.Logger))
	if err != nil {
		return fmt.Errorf("open audit sink %s: %w", s.Conf.PubSubSystem, err)
	}

	publisher, err := NewAuditPublisher(tr.Publisher, s.Conf.PubSubSystem, s.Logger, s.metrics)
	if err != nil {
		if tr.Subscriber != nil {
			_ = tr.Subscriber.Close()
		}
		return fmt.Errorf("open audit sink %s: %w", s.Conf.PubSubSystem, err)
	}

	s.producer = publisher
	s.publisher = tr.Publisher
	s.subscriber = tr.Subscriber
	s.endpoints = tr.Endpoints
	return nil
}

// Publish sends a caller-built envelope through the pipeline's producer.
func (s *Service) Publish(ctx context.Context, env *envelopepkg.Envelope) {
	if s == nil || s.producer == nil {
		return
	}
	s.producer.Publish(ctx, env)
}

// Enabled reports whether requests are audited.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// Producer returns the producer envelopes are handed to, nil when auditing
// is disabled.
func (s *Service) Producer() Producer {
	return s.producer
}

// Contract returns the compiled path templates.
func (s *Service) Contract() *contract.Compiled {
	return s.contract
}

// Subscriber returns the sink subscriber for in-process consumers, nil for
// publish-only sinks.
func (s *Service) Subscriber() message.Subscriber {
	return s.subscriber
}

// Endpoints lists where events are published, credentials masked.
func (s *Service) Endpoints() []string {
	return append([]string(nil), s.endpoints...)
}

// MetricsHandler serves the audit metrics. It answers 404 when metrics are
// disabled.
func (s *Service) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// Close releases the sink connection. Safe to call more than once.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		var errs []error
		if s.publisher != nil {
			errs = append(errs, s.publisher.Close())
		}
		if s.subscriber != nil && any(s.subscriber) != any(s.publisher) {
			errs = append(errs, s.subscriber.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
