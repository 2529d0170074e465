// Package nats provides the NATS Core audit sink.
package nats

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/auditflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

const (
	defaultPort    = 4222
	connectionName = "auditflow"
)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() {
	Register()
}

// Register registers the NATS transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Servers builds one server URL per host. The NATS client tries them in
// random order and fails over between them.
func Servers(cfg transport.Config) []string {
	scheme := "nats"
	if cfg.IsSSLEnabled() {
		scheme = "tls"
	}
	port := cfg.GetPort()
	if port <= 0 {
		port = defaultPort
	}
	servers := make([]string, 0, len(cfg.GetHosts()))
	for _, host := range cfg.GetHosts() {
		if host = strings.TrimSpace(host); host == "" {
			continue
		}
		u := url.URL{Scheme: scheme, Host: net.JoinHostPort(host, strconv.Itoa(port))}
		servers = append(servers, u.String())
	}
	return servers
}

// Options maps the broker settings onto NATS connection options.
// ReconnectAttempts keeps its meaning: -1 reconnects forever.
func Options(cfg transport.Config) ([]nc.Option, error) {
	opts := []nc.Option{
		nc.Name(connectionName),
		nc.Timeout(cfg.GetCallTimeout()),
		nc.MaxReconnects(cfg.GetReconnectAttempts()),
		nc.ReconnectWait(cfg.GetRetryInterval()),
		nc.PingInterval(cfg.GetConnectionTTL()),
	}
	if cfg.GetInitialConnectAttempts() != 1 {
		opts = append(opts, nc.RetryOnFailedConnect(true))
	}
	if user := cfg.GetUser(); user != "" {
		opts = append(opts, nc.UserInfo(user, cfg.GetPassword()))
	}
	tlsCfg, err := transport.ClientTLS(cfg)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts = append(opts, nc.Secure(tlsCfg))
	}
	return opts, nil
}

// Build creates the NATS sink.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	servers := Servers(cfg)
	if len(servers) == 0 {
		return transport.Transport{}, errors.New("nats: at least one host is required")
	}
	opts, err := Options(cfg)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("nats: %w", err)
	}

	serverURL := strings.Join(servers, ",")
	marshaler := &nats.NATSMarshaler{}
	jsConfig := nats.JetStreamConfig{Disabled: true}

	publisher, err := PublisherFactory(
		nats.PublisherConfig{
			URL:         serverURL,
			NatsOptions: opts,
			Marshaler:   marshaler,
			JetStream:   jsConfig,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		nats.SubscriberConfig{
			URL:         serverURL,
			NatsOptions: opts,
			Unmarshaler: marshaler,
			JetStream:   jsConfig,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
		Endpoints:  servers,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}
