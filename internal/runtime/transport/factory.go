package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/auditflow/internal/runtime/config"
	errspkg "github.com/drblury/auditflow/internal/runtime/errors"
	sinks "github.com/drblury/auditflow/transport"

	// Register the built-in sinks.
	_ "github.com/drblury/auditflow/transport/transports"
)

// Transport is the publisher (and optional subscriber) produced for a sink.
type Transport = sinks.Transport

// Factory abstracts how the audit service opens its sink.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

// Build calls f.
func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the factory that selects a sink from the transport
// registry by the configured pub/sub system.
func DefaultFactory() Factory {
	return defaultFactory{registry: sinks.DefaultRegistry}
}

// RegistryFactory returns a factory backed by the supplied registry.
func RegistryFactory(registry *sinks.Registry) Factory {
	return defaultFactory{registry: registry}
}

type defaultFactory struct {
	registry *sinks.Registry
}

func (f defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, errspkg.ErrConfigRequired
	}
	registry := f.registry
	if registry == nil {
		registry = sinks.DefaultRegistry
	}
	return registry.Build(ctx, conf, logger)
}
