// Package messaging holds the envelope exchanged between channels, converters
// and handlers.
package messaging

import "fmt"

// Message is an immutable payload plus headers. The payload is either raw
// bytes as read from a channel or an application value awaiting conversion.
// Use the With* helpers to derive new messages instead of mutating Headers.
type Message struct {
	Payload any
	Headers Headers
}

// New builds a Message with a private copy of headers.
func New(payload any, headers Headers) Message {
	return Message{Payload: payload, Headers: headers.Clone()}
}

// ContentType returns the content type header, or an empty string.
func (m Message) ContentType() string {
	return m.Headers[HeaderContentType]
}

// Header returns a single header value.
func (m Message) Header(key string) string {
	return m.Headers[key]
}

// Bytes returns the payload when it is already a byte slice.
func (m Message) Bytes() ([]byte, bool) {
	b, ok := m.Payload.([]byte)
	return b, ok
}

// WithPayload returns a copy of the message carrying payload.
func (m Message) WithPayload(payload any) Message {
	return Message{Payload: payload, Headers: m.Headers.Clone()}
}

// WithHeader returns a copy of the message with key=value set.
func (m Message) WithHeader(key, value string) Message {
	return Message{Payload: m.Payload, Headers: m.Headers.With(key, value)}
}

// WithHeaders returns a copy of the message overlaid with entries.
func (m Message) WithHeaders(entries map[string]string) Message {
	return Message{Payload: m.Payload, Headers: m.Headers.WithAll(entries)}
}

func (m Message) String() string {
	if b, ok := m.Bytes(); ok {
		return fmt.Sprintf("Message{payload=%q, headers=%v}", b, map[string]string(m.Headers))
	}
	return fmt.Sprintf("Message{payload=%v, headers=%v}", m.Payload, map[string]string(m.Headers))
}
