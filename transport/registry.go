package transport

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

var (
	// ErrUnknownTransport is returned by Build when no sink is registered
	// under the configured pubsub-system.
	ErrUnknownTransport = errors.New("unknown transport")
	errNilConfig        = errors.New("config is required")
)

type registration struct {
	build Builder
	caps  Capabilities
	// hasCaps is false for sinks registered through Register.
	hasCaps bool
}

// Registry maps sink names to their builders and capabilities. Names are
// case-insensitive, so "RabbitMQ" in a config file selects "rabbitmq".
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]registration
}

// DefaultRegistry holds the built-in sinks. Each sink package registers
// itself from init.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]registration)}
}

// Register adds a sink without declared capabilities. Registering a name
// again replaces the builder.
func (r *Registry) Register(name string, builder Builder) {
	r.put(name, registration{build: builder})
}

// RegisterWithCapabilities adds a sink and the capabilities the service
// checks against the configuration.
func (r *Registry) RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	r.put(name, registration{build: builder, caps: caps, hasCaps: true})
}

func (r *Registry) put(name string, reg registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[strings.ToLower(name)] = reg
}

func (r *Registry) lookup(name string) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.sinks[strings.ToLower(name)]
	return reg, ok
}

// GetCapabilities returns the declared capabilities of a sink, or a value
// carrying only the name when none were declared.
func (r *Registry) GetCapabilities(name string) Capabilities {
	if reg, ok := r.lookup(name); ok && reg.hasCaps {
		return reg.caps
	}
	return Capabilities{Name: name}
}

// Build opens the sink selected by cfg's pubsub-system.
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	if cfg == nil {
		return Transport{}, errNilConfig
	}
	name := cfg.GetPubSubSystem()
	reg, ok := r.lookup(name)
	if !ok {
		return Transport{}, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownTransport, strings.ToLower(name), r.Names())
	}
	return reg.build(ctx, cfg, logger)
}

// Names returns the registered sink names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Has reports whether a sink is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// Register adds a sink to the default registry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// RegisterWithCapabilities adds a sink and its capabilities to the default
// registry.
func RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	DefaultRegistry.RegisterWithCapabilities(name, builder, caps)
}

// Build opens a sink from the default registry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
