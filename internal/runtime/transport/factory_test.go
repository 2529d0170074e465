package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/auditflow/internal/runtime/config"
	errspkg "github.com/drblury/auditflow/internal/runtime/errors"
	"github.com/drblury/auditflow/internal/runtime/logging"
	sinks "github.com/drblury/auditflow/transport"
)

type mockPublisher struct{}

func (mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }
func (mockPublisher) Close() error                                             { return nil }

func testLogger() watermill.LoggerAdapter {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return logging.NewWatermillAdapter(logging.NewSlogServiceLogger(slogger))
}

func sinkConfig(name string) *config.Config {
	cfg := config.Defaults()
	cfg.PubSubSystem = name
	return &cfg
}

func TestDefaultFactory_BuildChannel(t *testing.T) {
	tr, err := DefaultFactory().Build(context.Background(), sinkConfig("channel"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Publisher.Close() })

	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
	assert.Equal(t, []string{"memory://channel"}, tr.Endpoints)
}

func TestDefaultFactory_RegistersBuiltInSinks(t *testing.T) {
	for _, name := range []string{"rabbitmq", "kafka", "nats", "sns", "http", "channel"} {
		assert.True(t, sinks.DefaultRegistry.Has(name), name)
	}
}

func TestDefaultFactory_NilConfig(t *testing.T) {
	_, err := DefaultFactory().Build(context.Background(), nil, testLogger())
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)
}

func TestDefaultFactory_UnknownSink(t *testing.T) {
	_, err := DefaultFactory().Build(context.Background(), sinkConfig("carrier-pigeon"), testLogger())
	assert.ErrorContains(t, err, "unknown transport")
}

func TestRegistryFactory(t *testing.T) {
	registry := sinks.NewRegistry()
	registry.Register("custom", func(ctx context.Context, cfg sinks.Config, logger watermill.LoggerAdapter) (sinks.Transport, error) {
		if cfg.GetHTTPPublisherURL() == "" {
			return sinks.Transport{}, errors.New("no url")
		}
		return sinks.Transport{Publisher: mockPublisher{}, Endpoints: []string{cfg.GetHTTPPublisherURL()}}, nil
	})

	cfg := sinkConfig("custom")
	_, err := RegistryFactory(registry).Build(context.Background(), cfg, testLogger())
	assert.ErrorContains(t, err, "no url")

	cfg.HTTPPublisherURL = "http://sink"
	tr, err := RegistryFactory(registry).Build(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"http://sink"}, tr.Endpoints)
}

func TestFactoryFunc(t *testing.T) {
	var called bool
	f := FactoryFunc(func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
		called = true
		return Transport{Publisher: mockPublisher{}}, nil
	})
	tr, err := f.Build(context.Background(), sinkConfig("any"), testLogger())
	require.NoError(t, err)
	assert.True(t, called)
	assert.NotNil(t, tr.Publisher)
}
