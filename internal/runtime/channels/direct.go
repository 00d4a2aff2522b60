package channels

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/drblury/flowbind/internal/runtime/messaging"
)

// Direct is an in-process handle that delivers each message synchronously
// to its subscribers on the sender's goroutine. Send fails when nothing has
// subscribed yet or when a subscriber returns an error.
type Direct struct {
	name string

	mu     sync.RWMutex
	subs   []directSub
	nextID uint64
}

type directSub struct {
	id  uint64
	ctx context.Context
	fn  SubscribeFunc
}

// NewDirect creates a Direct handle named name.
func NewDirect(name string) *Direct {
	return &Direct{name: name}
}

func (d *Direct) Name() string { return d.name }

// Destination is the channel name; direct channels are never routed.
func (d *Direct) Destination() string { return d.name }

// Send hands msg to the subscribers in turn, skipping those whose context is
// done.
func (d *Direct) Send(ctx context.Context, msg messaging.Message) error {
	d.mu.RLock()
	subs := append([]directSub(nil), d.subs...)
	d.mu.RUnlock()

	delivered := false
	for _, s := range subs {
		if s.ctx.Err() != nil {
			continue
		}
		if err := s.fn(ctx, msg); err != nil {
			return err
		}
		delivered = true
	}
	if !delivered {
		return fmt.Errorf("channel %q has no subscribers", d.name)
	}
	return nil
}

// Subscribe adds fn until ctx is done, then removes it.
func (d *Direct) Subscribe(ctx context.Context, fn SubscribeFunc) error {
	if fn == nil {
		return fmt.Errorf("channel %q: nil subscriber", d.name)
	}
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, directSub{id: id, ctx: ctx, fn: fn})
	d.mu.Unlock()

	context.AfterFunc(ctx, func() { d.remove(id) })
	return nil
}

func (d *Direct) remove(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = slices.DeleteFunc(d.subs, func(s directSub) bool { return s.id == id })
}
