/*
Package runtime assembles the HTTP audit pipeline of auditflow.

# Architecture Overview

Every request that passes the audit middleware produces an audit envelope
that is published to a pub/sub topic through a Watermill publisher. A second
envelope is published for the response when the handler wrote a body. Sink
failures are logged and counted; they never reach the caller.

# Package Structure

## Core Service (service.go)

The Service struct is the startup assembly. TryNewService branches once on
the configuration and wires:
  - the compiled API contract used for path parameter resolution
  - the envelope builder reading the user and correlation headers
  - the sink selected by PubSubSystem from the transport registry
  - the audit metrics

## Middleware (middleware.go)

Service.Middleware wraps an http.Handler:
  - paths containing /health or /actuator pass through untouched
  - the request body is drained once and replayed to the handler
  - the request envelope is published before the handler runs
  - the response is buffered, audited when non-empty and copied to the
    client exactly once

## Publishing (publisher.go)

AuditPublisher serializes envelopes, sets the CPPNAME selector attribute and
publishes to the jms.topic.auditing.event topic inside an OpenTelemetry
producer span.

## Monitoring (metrics.go, status.go)

Prometheus counters for published, failed and skipped events plus a publish
latency histogram, and a JSON status endpoint describing the wiring.

# Sub-packages

  - capture/: request and response body buffering
  - config/: configuration loading and validation
  - contract/: OpenAPI contract loading and path template matching
  - envelope/: audit envelope model and builder
  - errors/: sentinel errors and error types
  - ids/: envelope and message identifiers
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - metadata/: message metadata keys and helpers
  - transport/: sink factory backed by the transport registry

# Usage Example

	cfg, err := auditflow.LoadConfig("audit.yaml")
	if err != nil {
		log.Fatal(err)
	}

	svc := auditflow.NewService(cfg, logger, ctx, auditflow.ServiceDependencies{})
	defer svc.Close()

	mux := http.NewServeMux()
	mux.Handle("/orders/", ordersHandler)
	http.ListenAndServe(":8080", svc.Middleware(mux))
*/
package runtime
