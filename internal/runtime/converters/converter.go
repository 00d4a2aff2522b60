// Package converters turns raw channel payloads into handler arguments and
// handler results into channel payloads, selecting a converter by content
// type and Go type.
package converters

import (
	"reflect"

	"google.golang.org/protobuf/proto"

	"github.com/drblury/flowbind/internal/runtime/messaging"
)

// Converter transforms between a Message payload and a Go value. Converters
// are stateless and may claim overlapping content types; registry order
// breaks ties.
type Converter interface {
	Name() string
	// CanConvertFrom reports whether a payload of contentType can be read into
	// a value of target type.
	CanConvertFrom(contentType MimeType, target reflect.Type) bool
	// CanConvertTo reports whether a value of source type can be written as
	// contentType.
	CanConvertTo(contentType MimeType, source reflect.Type) bool
	FromMessage(msg messaging.Message, target reflect.Type) (any, error)
	// ToMessage renders value as contentType. The returned payload is a
	// []byte and the content type header is set.
	ToMessage(value any, contentType MimeType, headers messaging.Headers) (messaging.Message, error)
}

var (
	bytesType        = reflect.TypeOf([]byte(nil))
	stringType       = reflect.TypeOf("")
	tupleType        = reflect.TypeOf(messaging.Tuple(nil))
	protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()
)

func isProtoMessage(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer && t.Implements(protoMessageType)
}

// decodeInto allocates a value of target, lets decode fill it through a
// pointer and returns it in target's shape.
func decodeInto(target reflect.Type, decode func(ptr any) error) (any, error) {
	if target.Kind() == reflect.Pointer {
		ptr := reflect.New(target.Elem())
		if err := decode(ptr.Interface()); err != nil {
			return nil, err
		}
		return ptr.Interface(), nil
	}
	ptr := reflect.New(target)
	if err := decode(ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func payloadBytes(msg messaging.Message) ([]byte, bool) {
	switch p := msg.Payload.(type) {
	case []byte:
		return p, true
	case string:
		return []byte(p), true
	default:
		return nil, false
	}
}

func newMessage(payload []byte, contentType MimeType, headers messaging.Headers) messaging.Message {
	return messaging.Message{
		Payload: payload,
		Headers: headers.With(messaging.HeaderContentType, contentType.String()),
	}
}
