package channels

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	"github.com/drblury/flowbind/internal/runtime/messaging"
)

// WatermillHandle binds a channel name to a topic on a Watermill
// publisher/subscriber pair.
type WatermillHandle struct {
	name        string
	destination string
	publisher   message.Publisher
	subscriber  message.Subscriber
	maxSize     int64
}

// WatermillOption customises a WatermillHandle.
type WatermillOption func(*WatermillHandle)

// WithMaxMessageSize rejects outbound payloads larger than n bytes. Zero
// disables the check.
func WithMaxMessageSize(n int64) WatermillOption {
	return func(h *WatermillHandle) { h.maxSize = n }
}

// NewWatermillHandle creates a handle publishing to and subscribing from
// destination. An empty destination falls back to name.
func NewWatermillHandle(name, destination string, pub message.Publisher, sub message.Subscriber, opts ...WatermillOption) *WatermillHandle {
	if destination == "" {
		destination = name
	}
	h := &WatermillHandle{
		name:        name,
		destination: destination,
		publisher:   pub,
		subscriber:  sub,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *WatermillHandle) Name() string { return h.name }

func (h *WatermillHandle) Destination() string { return h.destination }

// Subscriber exposes the underlying subscriber so a router can consume the
// destination directly.
func (h *WatermillHandle) Subscriber() message.Subscriber { return h.subscriber }

// Send publishes msg to the destination. The payload must already be bytes.
func (h *WatermillHandle) Send(ctx context.Context, msg messaging.Message) error {
	if h.publisher == nil {
		return fmt.Errorf("channel %q has no publisher", h.name)
	}
	payload, ok := msg.Bytes()
	if !ok {
		return fmt.Errorf("%w: channel %q got %T", errspkg.ErrPayloadNotBytes, h.name, msg.Payload)
	}
	if h.maxSize > 0 && int64(len(payload)) > h.maxSize {
		return fmt.Errorf("%w: %d > %d bytes on channel %q", errspkg.ErrMessageTooLarge, len(payload), h.maxSize, h.name)
	}

	wm, err := messaging.ToWatermill(msg)
	if err != nil {
		return err
	}
	if ctx != nil {
		wm.SetContext(ctx)
	}
	if err := h.publisher.Publish(h.destination, wm); err != nil {
		return fmt.Errorf("publish to %q: %w", h.destination, err)
	}
	return nil
}

// Subscribe consumes the destination on a background goroutine until ctx is
// done. Each message is acked when fn returns nil and nacked otherwise.
func (h *WatermillHandle) Subscribe(ctx context.Context, fn SubscribeFunc) error {
	if h.subscriber == nil {
		return fmt.Errorf("channel %q has no subscriber", h.name)
	}
	msgs, err := h.subscriber.Subscribe(ctx, h.destination)
	if err != nil {
		return fmt.Errorf("subscribe to %q: %w", h.destination, err)
	}
	go func() {
		for wm := range msgs {
			if err := fn(ctx, messaging.FromWatermill(wm)); err != nil {
				wm.Nack()
				continue
			}
			wm.Ack()
		}
	}()
	return nil
}
