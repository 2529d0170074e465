// Package transports imports all built-in audit sinks for auto-registration.
// Import this package to have every sink registered with the default registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/drblury/auditflow/transport/channel"
	_ "github.com/drblury/auditflow/transport/http"
	_ "github.com/drblury/auditflow/transport/kafka"
	_ "github.com/drblury/auditflow/transport/nats"
	_ "github.com/drblury/auditflow/transport/rabbitmq"
	_ "github.com/drblury/auditflow/transport/sns"
)
