// Package auditflow is an HTTP audit middleware built on Watermill. Every
// request passing the middleware is turned into an audit envelope and
// published to the jms.topic.auditing.event topic; a second envelope follows
// when the handler writes a response body. Path parameters are resolved from
// the templates of an OpenAPI contract so the audit trail names them.
//
// The sink is picked from Config.PubSubSystem and never affects the audited
// request: serialization and broker failures are logged and counted, and the
// client sees the same response either way. Requests to /health and
// /actuator paths are not audited.
//
// # Sinks
//
// auditflow ships six sinks:
//   - rabbitmq: AMQP with an HA host ring, reconnect backoff and TLS (default)
//   - kafka: sarama sync producer with SASL and TLS
//   - nats: NATS Core with reconnects and TLS
//   - sns: AWS SNS topic, LocalStack endpoints supported
//   - http: webhook POSTing envelopes to a base URL
//   - channel: in-memory Go channels for tests and local development
//
// Custom sinks can be registered with RegisterTransport or supplied through
// ServiceDependencies.TransportFactory.
//
// # Setup
//
// Load or fill a Config, create the Service once at startup and wrap the
// application's handler with Service.Middleware. TryNewService reports every
// configuration, contract and connection problem before traffic is served;
// NewService panics on them instead.
package auditflow
