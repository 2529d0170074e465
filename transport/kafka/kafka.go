// Package kafka provides the Apache Kafka audit sink.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/auditflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

const (
	defaultPort = 9092
	clientID    = "auditflow"
)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// Brokers joins every host with the configured port.
func Brokers(cfg transport.Config) []string {
	port := cfg.GetPort()
	if port <= 0 {
		port = defaultPort
	}
	brokers := make([]string, 0, len(cfg.GetHosts()))
	for _, host := range cfg.GetHosts() {
		if host = strings.TrimSpace(host); host != "" {
			brokers = append(brokers, net.JoinHostPort(host, strconv.Itoa(port)))
		}
	}
	return brokers
}

// SaramaConfig derives the producer configuration from the broker settings.
// Failed sends are not retried by the producer; audit delivery is best
// effort.
func SaramaConfig(cfg transport.Config) (*sarama.Config, error) {
	sc := kafka.DefaultSaramaSyncPublisherConfig()
	sc.ClientID = clientID
	sc.Producer.Retry.Max = 0
	sc.Producer.Timeout = cfg.GetCallTimeout()

	sc.Net.DialTimeout = cfg.GetCallTimeout()
	sc.Net.ReadTimeout = cfg.GetCallTimeout()
	sc.Net.WriteTimeout = cfg.GetCallTimeout()
	sc.Net.KeepAlive = cfg.GetConnectionTTL()

	if attempts := cfg.GetInitialConnectAttempts(); attempts > 0 {
		sc.Metadata.Retry.Max = attempts
	}
	sc.Metadata.Retry.Backoff = cfg.GetRetryInterval()

	if user := cfg.GetUser(); user != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.User = user
		sc.Net.SASL.Password = cfg.GetPassword()
	}

	tlsCfg, err := transport.ClientTLS(cfg)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsCfg
	}
	return sc, nil
}

// Build creates the Kafka sink. It only publishes.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	brokers := Brokers(cfg)
	if len(brokers) == 0 {
		return transport.Transport{}, errors.New("kafka: at least one host is required")
	}
	sc, err := SaramaConfig(cfg)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("kafka: %w", err)
	}

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: sc,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher: publisher,
		Endpoints: brokers,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}
