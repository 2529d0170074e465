// Package rabbitmq provides the RabbitMQ/AMQP audit sink. Several hosts form
// a ring: the initial connection walks the ring with exponential backoff and,
// in HA mode, a failed publish moves the sink to the next reachable host.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/drblury/auditflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

const (
	defaultPort       = 5672
	contentTypeJSON   = "application/json"
	defaultLocale     = "en_US"
	backoffRandomness = 0.5
)

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

// closeConnection is swapped in tests, where connections are not dialed.
var closeConnection = func(conn *amqp.ConnectionWrapper) error {
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func init() {
	Register()
}

// Register registers the RabbitMQ transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RabbitMQCapabilities)
}

// Endpoint is one broker of the host ring.
type Endpoint struct {
	Host string
	URI  string
}

// Redacted returns the URI with the password masked.
func (e Endpoint) Redacted() string {
	u, err := url.Parse(e.URI)
	if err != nil {
		return e.Host
	}
	return u.Redacted()
}

// Endpoints builds one AMQP URI per configured host. amqps is used when TLS
// is enabled.
func Endpoints(cfg transport.Config) []Endpoint {
	scheme := "amqp"
	if cfg.IsSSLEnabled() {
		scheme = "amqps"
	}
	port := cfg.GetPort()
	if port <= 0 {
		port = defaultPort
	}

	endpoints := make([]Endpoint, 0, len(cfg.GetHosts()))
	for _, host := range cfg.GetHosts() {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		u := url.URL{
			Scheme: scheme,
			Host:   net.JoinHostPort(host, strconv.Itoa(port)),
			Path:   "/",
		}
		if user := cfg.GetUser(); user != "" {
			u.User = url.UserPassword(user, cfg.GetPassword())
		}
		endpoints = append(endpoints, Endpoint{Host: host, URI: u.String()})
	}
	return endpoints
}

// Build connects to the first reachable host of the ring and returns the
// audit sink.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	endpoints := Endpoints(cfg)
	if len(endpoints) == 0 {
		return transport.Transport{}, errors.New("rabbitmq: at least one host is required")
	}
	tlsCfg, err := transport.ClientTLS(cfg)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("rabbitmq: %w", err)
	}

	d := &dialer{cfg: cfg, endpoints: endpoints, tlsCfg: tlsCfg, logger: logger}

	initial, err := d.connectRing(ctx, 0, cfg.GetInitialConnectAttempts())
	if err != nil {
		return transport.Transport{}, fmt.Errorf("rabbitmq: connect: %w", err)
	}

	var publisher message.Publisher = initial
	if cfg.IsHA() && len(endpoints) > 1 && cfg.GetReconnectAttempts() != 0 {
		publisher = newFailoverPublisher(d, initial, cfg.GetReconnectAttempts(), logger)
	}

	subscriber, err := SubscriberFactory(d.amqpConfig(initial.index), logger, initial.conn)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	redacted := make([]string, len(endpoints))
	for i, ep := range endpoints {
		redacted[i] = ep.Redacted()
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
		Endpoints:  redacted,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}

// connectionConfig maps the broker tuning onto the AMQP connection: call
// timeout bounds the dial, connection TTL becomes the heartbeat, and the
// retry settings drive the redial backoff of a dropped connection.
func (d *dialer) connectionConfig(index int) amqp.ConnectionConfig {
	cfg := d.cfg
	return amqp.ConnectionConfig{
		AmqpURI:   d.endpoints[index].URI,
		TLSConfig: d.tlsCfg,
		AmqpConfig: &amqp091.Config{
			Heartbeat:       cfg.GetConnectionTTL(),
			Locale:          defaultLocale,
			TLSClientConfig: d.tlsCfg,
			Dial:            amqp091.DefaultDial(cfg.GetCallTimeout()),
		},
		Reconnect: &amqp.ReconnectConfig{
			BackoffInitialInterval:     cfg.GetRetryInterval(),
			BackoffRandomizationFactor: backoffRandomness,
			BackoffMultiplier:          cfg.GetRetryMultiplier(),
			BackoffMaxInterval:         cfg.GetMaxRetryInterval(),
		},
	}
}

// amqpConfig declares a durable fan-out exchange per topic and marks every
// message as persistent JSON.
func (d *dialer) amqpConfig(index int) amqp.Config {
	c := amqp.NewDurablePubSubConfig(d.endpoints[index].URI, amqp.GenerateQueueNameTopicName)
	c.Connection = d.connectionConfig(index)
	c.Marshaler = amqp.DefaultMarshaler{
		PostprocessPublishing: func(p amqp091.Publishing) amqp091.Publishing {
			p.ContentType = contentTypeJSON
			return p
		},
	}
	return c
}
