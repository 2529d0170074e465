// Package http provides the webhook audit sink: every envelope is POSTed to
// the publisher URL with the topic appended.
package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/auditflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

func init() {
	Register()
}

// Register registers the HTTP transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// Client returns the HTTP client used by the sink. The call timeout bounds
// each request; the trust material is used when TLS is enabled.
func Client(cfg transport.Config) (*nethttp.Client, error) {
	client := &nethttp.Client{Timeout: cfg.GetCallTimeout()}
	tlsCfg, err := transport.ClientTLS(cfg)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		rt := nethttp.DefaultTransport.(*nethttp.Transport).Clone()
		rt.TLSClientConfig = tlsCfg
		client.Transport = rt
	}
	return client, nil
}

// Build creates the HTTP sink. It only publishes.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	publisherURL := cfg.GetHTTPPublisherURL()
	if publisherURL == "" {
		return transport.Transport{}, errors.New("http: publisher URL is required")
	}
	if !strings.HasSuffix(publisherURL, "/") {
		publisherURL += "/"
	}
	client, err := Client(cfg)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("http: %w", err)
	}

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				return http.DefaultMarshalMessageFunc(publisherURL+url.PathEscape(topic), msg)
			},
			Client: client,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	endpoint := publisherURL
	if u, err := url.Parse(publisherURL); err == nil {
		endpoint = u.Redacted()
	}

	return transport.Transport{
		Publisher: publisher,
		Endpoints: []string{endpoint},
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}
