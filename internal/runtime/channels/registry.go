// Package channels maps channel names to the handles a binder provides.
package channels

import (
	"context"
	"sort"
	"sync"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	"github.com/drblury/flowbind/internal/runtime/messaging"
)

// SubscribeFunc receives one inbound message. Returning an error negatively
// acknowledges it so the binder can redeliver or dead-letter.
type SubscribeFunc func(ctx context.Context, msg messaging.Message) error

// Handle is a named conduit provided by a binder. Send must report delivery
// failure; Subscribe delivers messages in arrival order until ctx ends.
type Handle interface {
	Name() string
	Destination() string
	Send(ctx context.Context, msg messaging.Message) error
	Subscribe(ctx context.Context, fn SubscribeFunc) error
}

// Registry holds the handles of one application context. It is populated at
// startup and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: map[string]Handle{}}
}

// Register adds h under name.
func (r *Registry) Register(name string, h Handle) error {
	if name == "" || h == nil {
		return errspkg.ErrChannelRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[name]; exists {
		return errspkg.ErrChannelRegistered
	}
	r.handles[name] = h
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(name string, h Handle) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handle registered under name or a ChannelNotFoundError.
func (r *Registry) Lookup(name string) (Handle, error) {
	r.mu.RLock()
	h, ok := r.handles[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &errspkg.ChannelNotFoundError{Channel: name}
	}
	return h, nil
}

// Names returns the registered channel names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports how many channels are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
