package converters

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/drblury/flowbind/internal/runtime/messaging"
)

type funcConverter[T any] struct {
	name       string
	mediaRange MimeType
	typ        reflect.Type
	decode     func([]byte) (T, error)
	encode     func(T) ([]byte, error)
}

// NewFuncConverter builds a converter for values of type T from plain
// functions. mediaRange may use wildcards ("application/*+xml"). Either
// function may be nil to make the converter one-directional.
func NewFuncConverter[T any](name, mediaRange string, decode func([]byte) (T, error), encode func(T) ([]byte, error)) (Converter, error) {
	if name == "" {
		return nil, errors.New("converters: converter name is required")
	}
	if decode == nil && encode == nil {
		return nil, fmt.Errorf("converters: converter %q needs a decode or encode function", name)
	}
	mr, err := ParseMimeType(mediaRange)
	if err != nil {
		return nil, err
	}
	return &funcConverter[T]{
		name:       name,
		mediaRange: mr,
		typ:        reflect.TypeFor[T](),
		decode:     decode,
		encode:     encode,
	}, nil
}

func (c *funcConverter[T]) Name() string { return c.name }

func (c *funcConverter[T]) CanConvertFrom(ct MimeType, target reflect.Type) bool {
	return c.decode != nil && target == c.typ && c.mediaRange.Includes(ct)
}

func (c *funcConverter[T]) CanConvertTo(ct MimeType, source reflect.Type) bool {
	return c.encode != nil && source == c.typ && c.mediaRange.Includes(ct)
}

func (c *funcConverter[T]) FromMessage(msg messaging.Message, _ reflect.Type) (any, error) {
	data, ok := payloadBytes(msg)
	if !ok {
		return nil, fmt.Errorf("unsupported payload type %T", msg.Payload)
	}
	return c.decode(data)
}

func (c *funcConverter[T]) ToMessage(value any, ct MimeType, headers messaging.Headers) (messaging.Message, error) {
	v, ok := value.(T)
	if !ok {
		return messaging.Message{}, fmt.Errorf("expected %s, got %T", c.typ, value)
	}
	data, err := c.encode(v)
	if err != nil {
		return messaging.Message{}, err
	}
	return newMessage(data, ct, headers), nil
}
