package binder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

// ErrConfigRequired is returned by Build when no config is supplied.
var ErrConfigRequired = errors.New("binder: config is required")

// Registry maps binder names to their builders and capabilities. Binder
// packages register themselves from init.
type Registry struct {
	mu           sync.RWMutex
	builders     map[string]Builder
	capabilities map[string]Capabilities
}

// DefaultRegistry is the global binder registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty binder registry.
func NewRegistry() *Registry {
	return &Registry{
		builders:     make(map[string]Builder),
		capabilities: make(map[string]Capabilities),
	}
}

// Register adds a binder builder. The name matches the "binder" config value.
func (r *Registry) Register(name string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
}

// RegisterWithCapabilities adds a binder builder and its capabilities.
func (r *Registry) RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
	r.capabilities[name] = caps
}

// GetCapabilities returns the capabilities for a registered binder, or a
// zero set carrying only the name when none were registered.
func (r *Registry) GetCapabilities(name string) Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caps, ok := r.capabilities[name]; ok {
		return caps
	}
	return Capabilities{Name: name}
}

// Build creates the binder selected by cfg.GetBinderType.
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Binder, error) {
	if cfg == nil {
		return Binder{}, ErrConfigRequired
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	name := cfg.GetBinderType()

	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()

	if !ok {
		return Binder{}, fmt.Errorf("unknown binder: %q (registered: %v)", name, r.Names())
	}

	b, err := builder(ctx, cfg, logger)
	if err != nil {
		return Binder{}, fmt.Errorf("binder %s: %w", name, err)
	}
	return b, nil
}

// Names returns the registered binder names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a binder is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[name]
	return ok
}

// Register adds a binder builder to the default registry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// RegisterWithCapabilities adds a binder builder and its capabilities to the default registry.
func RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	DefaultRegistry.RegisterWithCapabilities(name, builder, caps)
}

// GetCapabilities returns capabilities from the default registry.
func GetCapabilities(name string) Capabilities {
	return DefaultRegistry.GetCapabilities(name)
}

// Build creates a binder using the default registry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Binder, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}

// Names returns the binder names registered on the default registry.
func Names() []string {
	return DefaultRegistry.Names()
}
