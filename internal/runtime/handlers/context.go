package handlers

import (
	"context"

	"github.com/drblury/flowbind/internal/runtime/messaging"
)

// MessageContext gives payload-only handlers access to the headers of the
// message being dispatched.
type MessageContext struct {
	Headers messaging.Headers
}

// FromContext returns the MessageContext of the current dispatch. Outside a
// dispatch the headers are empty.
func FromContext(ctx context.Context) MessageContext {
	msg, _ := messaging.FromContext(ctx)
	return MessageContext{Headers: msg.Headers}
}

// CloneHeaders returns a copy of the inbound headers so handlers can build
// reply headers without touching the original map.
func (c MessageContext) CloneHeaders() messaging.Headers {
	return c.Headers.Clone()
}

// Get retrieves a header value by key.
func (c MessageContext) Get(key string) string {
	return c.Headers[key]
}

// CorrelationID returns the correlation id header, if present.
func (c MessageContext) CorrelationID() string {
	return c.Headers[messaging.HeaderCorrelationID]
}

// ContentType returns the content type header, if present.
func (c MessageContext) ContentType() string {
	return c.Headers[messaging.HeaderContentType]
}
