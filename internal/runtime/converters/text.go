package converters

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/drblury/flowbind/internal/runtime/messaging"
)

func textual(ct MimeType) bool {
	return ct.IsText() || ct.Essence() == ContentTypeOctetStream
}

func supportedCharset(charset string) bool {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8", "us-ascii":
		return true
	}
	return false
}

// bytesToStringConverter reads text payloads into string-kinded targets.
type bytesToStringConverter struct{}

func (bytesToStringConverter) Name() string { return "bytes-to-string" }

func (bytesToStringConverter) CanConvertFrom(ct MimeType, target reflect.Type) bool {
	return textual(ct) && supportedCharset(ct.Charset()) && target != nil && target.Kind() == reflect.String
}

func (bytesToStringConverter) CanConvertTo(MimeType, reflect.Type) bool { return false }

func (bytesToStringConverter) FromMessage(msg messaging.Message, target reflect.Type) (any, error) {
	data, ok := payloadBytes(msg)
	if !ok {
		return nil, fmt.Errorf("unsupported payload type %T", msg.Payload)
	}
	return reflect.ValueOf(string(data)).Convert(target).Interface(), nil
}

func (bytesToStringConverter) ToMessage(any, MimeType, messaging.Headers) (messaging.Message, error) {
	return messaging.Message{}, errors.New("bytes-to-string only reads messages")
}

// stringToBytesConverter writes string-kinded values as text payloads.
type stringToBytesConverter struct{}

func (stringToBytesConverter) Name() string { return "string-to-bytes" }

func (stringToBytesConverter) CanConvertFrom(MimeType, reflect.Type) bool { return false }

func (stringToBytesConverter) CanConvertTo(ct MimeType, source reflect.Type) bool {
	return textual(ct) && supportedCharset(ct.Charset()) && source != nil && source.Kind() == reflect.String
}

func (stringToBytesConverter) FromMessage(messaging.Message, reflect.Type) (any, error) {
	return nil, errors.New("string-to-bytes only writes messages")
}

func (stringToBytesConverter) ToMessage(value any, ct MimeType, headers messaging.Headers) (messaging.Message, error) {
	return newMessage([]byte(reflect.ValueOf(value).String()), ct, headers), nil
}

// objectToStringConverter renders any other value through its canonical
// text form: String() for fmt.Stringer, fmt.Sprint otherwise.
type objectToStringConverter struct{}

func (objectToStringConverter) Name() string { return "object-to-string" }

func (objectToStringConverter) CanConvertFrom(MimeType, reflect.Type) bool { return false }

func (objectToStringConverter) CanConvertTo(ct MimeType, source reflect.Type) bool {
	return ct.IsText() && source != nil && source.Kind() != reflect.String && source != bytesType
}

func (objectToStringConverter) FromMessage(messaging.Message, reflect.Type) (any, error) {
	return nil, errors.New("object-to-string only writes messages")
}

func (objectToStringConverter) ToMessage(value any, ct MimeType, headers messaging.Headers) (messaging.Message, error) {
	var text string
	if s, ok := value.(fmt.Stringer); ok {
		text = s.String()
	} else {
		text = fmt.Sprint(value)
	}
	return newMessage([]byte(text), ct, headers), nil
}
