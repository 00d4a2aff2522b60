package messaging

import "context"

type inboundKey struct{}

// NewContext returns ctx carrying msg as the message being dispatched.
func NewContext(ctx context.Context, msg Message) context.Context {
	return context.WithValue(ctx, inboundKey{}, msg)
}

// FromContext returns the message being dispatched, if any.
func FromContext(ctx context.Context) (Message, bool) {
	if ctx == nil {
		return Message{}, false
	}
	msg, ok := ctx.Value(inboundKey{}).(Message)
	return msg, ok
}
