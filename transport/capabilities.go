package transport

// Capabilities describes what an audit sink offers. The service checks them
// at startup against the configuration.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string

	// SupportsTLS indicates the sink can encrypt its broker connection from
	// the keystore and truststore settings.
	SupportsTLS bool

	// SupportsHA indicates the sink spreads connections over several hosts
	// and reconnects after losing one.
	SupportsHA bool

	// SupportsHeaders indicates message metadata travels as broker
	// attributes, so subscribers can select on the event name without
	// decoding the envelope.
	SupportsHeaders bool

	// SupportsOrdering indicates the sink keeps publish order per topic.
	SupportsOrdering bool

	// Durable indicates published events survive a broker restart.
	Durable bool

	// RequiresBroker indicates the sink connects to the configured hosts.
	RequiresBroker bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// SupportsSelector reports whether subscribers can filter on the event name
// attribute.
func (c Capabilities) SupportsSelector() bool {
	return c.SupportsHeaders
}

// Predefined capability sets for the built-in sinks.
var (
	// RabbitMQCapabilities for the RabbitMQ/AMQP sink.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsTLS:      true,
		SupportsHA:       true,
		SupportsHeaders:  true,
		SupportsOrdering: true,
		Durable:          true,
		RequiresBroker:   true,
	}

	// KafkaCapabilities for the Apache Kafka sink.
	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsTLS:      true,
		SupportsHA:       true,
		SupportsHeaders:  true,
		SupportsOrdering: true,
		Durable:          true,
		RequiresBroker:   true,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// NATSCapabilities for the NATS Core sink.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTLS:     true,
		SupportsHA:      true,
		SupportsHeaders: true,
		RequiresBroker:  true,
		MaxMessageSize:  1048576, // Default 1MB
	}

	// SNSCapabilities for the AWS SNS sink. Metadata travels as SNS message
	// attributes.
	SNSCapabilities = Capabilities{
		Name:            "sns",
		SupportsTLS:     true,
		SupportsHeaders: true,
		Durable:         true,
		MaxMessageSize:  262144, // 256KB SNS limit
	}

	// HTTPCapabilities for the webhook sink. The trust material is used for
	// https publisher URLs.
	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTLS:     true,
		SupportsHeaders: true,
	}

	// ChannelCapabilities for the in-memory sink.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsHeaders:  true,
		SupportsOrdering: true,
	}
)

// GetCapabilities returns the capabilities for a transport by name.
// Uses the registry to look up capabilities registered by each transport package.
// Returns a Capabilities value carrying only the name if the transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
