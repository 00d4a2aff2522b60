package converters

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	"github.com/drblury/flowbind/internal/runtime/messaging"
)

// Priority selects where Register places a converter.
type Priority int

const (
	// PriorityUser converters are consulted before the defaults.
	PriorityUser Priority = iota
	// PriorityDefault converters are appended after the built-in chain.
	PriorityDefault
)

// Defaults returns the built-in converter chain in resolution order.
func Defaults() []Converter {
	return []Converter{
		jsonToTupleConverter{},
		tupleToJSONConverter{},
		jsonToObjectConverter{},
		objectToJSONConverter{},
		bytesToStringConverter{},
		stringToBytesConverter{},
		objectToStringConverter{},
		objectToSerializedConverter{},
		serializedToObjectConverter{},
		protobufConverter{},
	}
}

// Registry is an ordered converter chain. The first converter that accepts a
// content type and Go type wins. It is safe for concurrent use; lookups take a
// read lock only.
type Registry struct {
	mu       sync.RWMutex
	user     []Converter
	defaults []Converter
}

// NewRegistry returns a registry holding the built-in chain.
func NewRegistry() *Registry {
	return &Registry{defaults: Defaults()}
}

// Register adds c to the chain. User converters keep their registration
// order and always precede the defaults.
func (r *Registry) Register(c Converter, priority Priority) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if priority == PriorityUser {
		r.user = append(r.user, c)
		return
	}
	r.defaults = append(r.defaults, c)
}

// Converters returns a snapshot of the chain in resolution order.
func (r *Registry) Converters() []Converter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Converter, 0, len(r.user)+len(r.defaults))
	out = append(out, r.user...)
	return append(out, r.defaults...)
}

// ResolveForSend returns the first converter able to write source as
// contentType.
func (r *Registry) ResolveForSend(contentType string, source reflect.Type) (Converter, error) {
	ct, err := ParseMimeType(contentType)
	if err != nil {
		return nil, err
	}
	for _, c := range r.Converters() {
		if c.CanConvertTo(ct, source) {
			return c, nil
		}
	}
	return nil, &errspkg.NoConverterFoundError{ContentType: contentType, Type: typeName(source), Direction: errspkg.DirectionSend}
}

// ResolveForReceive returns the first converter able to read contentType
// into target.
func (r *Registry) ResolveForReceive(contentType string, target reflect.Type) (Converter, error) {
	ct, err := ParseMimeType(contentType)
	if err != nil {
		return nil, err
	}
	for _, c := range r.Converters() {
		if c.CanConvertFrom(ct, target) {
			return c, nil
		}
	}
	return nil, &errspkg.NoConverterFoundError{ContentType: contentType, Type: typeName(target), Direction: errspkg.DirectionReceive}
}

// FromMessage converts msg into a value of target. Byte targets and payloads
// already assignable to target bypass the chain. A missing content type
// defaults by target: text/plain for strings, octet-stream for bytes and
// JSON for everything else.
func (r *Registry) FromMessage(msg messaging.Message, target reflect.Type) (any, error) {
	if target == nil {
		return nil, errors.New("converters: target type is required")
	}
	if msg.Payload == nil {
		return nil, errors.New("converters: message has no payload")
	}
	if target == bytesType {
		if b, ok := payloadBytes(msg); ok {
			return b, nil
		}
	}
	if _, raw := msg.Payload.([]byte); !raw && reflect.TypeOf(msg.Payload).AssignableTo(target) {
		return msg.Payload, nil
	}

	contentType := msg.ContentType()
	if contentType == "" {
		contentType = DefaultContentType(target)
	}
	c, err := r.ResolveForReceive(contentType, target)
	if err != nil {
		return nil, err
	}
	v, err := c.FromMessage(msg, target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}
	return v, nil
}

// ToMessage renders value as contentType, or as the default content type
// for its Go type when contentType is empty. Byte slices pass through.
func (r *Registry) ToMessage(value any, contentType string, headers messaging.Headers) (messaging.Message, error) {
	if value == nil {
		return messaging.Message{}, errors.New("converters: cannot send a nil payload")
	}
	if b, ok := value.([]byte); ok {
		if contentType == "" {
			contentType = ContentTypeOctetStream
		}
		return messaging.Message{Payload: b, Headers: headers.With(messaging.HeaderContentType, contentType)}, nil
	}

	source := reflect.TypeOf(value)
	if contentType == "" {
		contentType = DefaultContentType(source)
	}
	ct, err := ParseMimeType(contentType)
	if err != nil {
		return messaging.Message{}, err
	}
	c, err := r.ResolveForSend(contentType, source)
	if err != nil {
		return messaging.Message{}, err
	}
	msg, err := c.ToMessage(value, ct, headers)
	if err != nil {
		return messaging.Message{}, fmt.Errorf("%s: %w", c.Name(), err)
	}
	return msg, nil
}

// DefaultContentType returns the content type assumed for t when a message
// or binding does not name one.
func DefaultContentType(t reflect.Type) string {
	switch {
	case t == bytesType:
		return ContentTypeOctetStream
	case t != nil && t.Kind() == reflect.String:
		return ContentTypeText
	default:
		return ContentTypeJSON
	}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
