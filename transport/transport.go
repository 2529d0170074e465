// Package transport defines the interfaces shared by the audit sinks. Each
// sink (rabbitmq, kafka, nats, sns, http, channel) lives in its own sub-package
// and registers itself with the transport registry.
package transport

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/auditflow/transport/tlsconfig"
)

// Transport is what a sink builder produces. Subscriber is nil for sinks
// that can only publish.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	// Endpoints lists where the sink publishes, with credentials masked.
	Endpoints []string
}

// Builder is the function signature for creating a transport from config.
// Each transport package provides a Builder that can be registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports.
// This interface allows transports to access only the config they need
// without depending on the full config package.
type Config interface {
	// GetPubSubSystem returns the transport type name.
	GetPubSubSystem() string

	// Broker endpoints and credentials.
	GetHosts() []string
	GetPort() int
	GetUser() string
	GetPassword() string
	IsHA() bool

	// TLS material.
	IsSSLEnabled() bool
	IsVerifyHost() bool
	IsClientAuthRequired() bool
	GetKeystore() string
	GetKeystorePassword() string
	GetTruststore() string
	GetTruststorePassword() string

	// Connection tuning.
	GetReconnectAttempts() int
	GetInitialConnectAttempts() int
	GetRetryInterval() time.Duration
	GetRetryMultiplier() float64
	GetMaxRetryInterval() time.Duration
	GetConnectionTTL() time.Duration
	GetCallTimeout() time.Duration

	// HTTP sink.
	GetHTTPPublisherURL() string

	// SNS sink.
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// TLSSettings extracts the TLS material from cfg.
func TLSSettings(cfg Config) tlsconfig.Settings {
	return tlsconfig.Settings{
		VerifyHost:         cfg.IsVerifyHost(),
		ClientAuthRequired: cfg.IsClientAuthRequired(),
		Keystore:           cfg.GetKeystore(),
		KeystorePassword:   cfg.GetKeystorePassword(),
		Truststore:         cfg.GetTruststore(),
		TruststorePassword: cfg.GetTruststorePassword(),
	}
}

// ClientTLS returns the client TLS configuration for cfg, or nil when TLS is
// disabled.
func ClientTLS(cfg Config) (*tls.Config, error) {
	if !cfg.IsSSLEnabled() {
		return nil, nil
	}
	return tlsconfig.Build(TLSSettings(cfg))
}
