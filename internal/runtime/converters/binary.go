package converters

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"

	"github.com/drblury/flowbind/internal/runtime/messaging"
)

// objectToSerializedConverter writes values in the Go-native gob encoding.
type objectToSerializedConverter struct{}

func (objectToSerializedConverter) Name() string { return "object-to-go-serialized" }

func (objectToSerializedConverter) CanConvertFrom(MimeType, reflect.Type) bool { return false }

func (objectToSerializedConverter) CanConvertTo(ct MimeType, source reflect.Type) bool {
	return ct.Essence() == ContentTypeGoSerialized && source != nil
}

func (objectToSerializedConverter) FromMessage(messaging.Message, reflect.Type) (any, error) {
	return nil, errors.New("object-to-go-serialized only writes messages")
}

func (objectToSerializedConverter) ToMessage(value any, ct MimeType, headers messaging.Headers) (messaging.Message, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return messaging.Message{}, fmt.Errorf("gob encode %T: %w", value, err)
	}
	return newMessage(buf.Bytes(), ct, headers), nil
}

// serializedToObjectConverter reads gob payloads back into the target type.
type serializedToObjectConverter struct{}

func (serializedToObjectConverter) Name() string { return "go-serialized-to-object" }

func (serializedToObjectConverter) CanConvertFrom(ct MimeType, target reflect.Type) bool {
	return ct.Essence() == ContentTypeGoSerialized && target != nil
}

func (serializedToObjectConverter) CanConvertTo(MimeType, reflect.Type) bool { return false }

func (serializedToObjectConverter) FromMessage(msg messaging.Message, target reflect.Type) (any, error) {
	data, ok := msg.Bytes()
	if !ok {
		return nil, fmt.Errorf("unsupported payload type %T", msg.Payload)
	}
	return decodeInto(target, func(ptr any) error {
		return gob.NewDecoder(bytes.NewReader(data)).Decode(ptr)
	})
}

func (serializedToObjectConverter) ToMessage(any, MimeType, messaging.Headers) (messaging.Message, error) {
	return messaging.Message{}, errors.New("go-serialized-to-object only reads messages")
}

// protobufConverter handles the protobuf binary wire format in both
// directions.
type protobufConverter struct{}

func (protobufConverter) Name() string { return "protobuf" }

func (protobufConverter) CanConvertFrom(ct MimeType, target reflect.Type) bool {
	return ct.Essence() == ContentTypeProtobuf && isProtoMessage(target)
}

func (protobufConverter) CanConvertTo(ct MimeType, source reflect.Type) bool {
	return ct.Essence() == ContentTypeProtobuf && isProtoMessage(source)
}

func (protobufConverter) FromMessage(msg messaging.Message, target reflect.Type) (any, error) {
	data, ok := msg.Bytes()
	if !ok {
		return nil, fmt.Errorf("unsupported payload type %T", msg.Payload)
	}
	return decodeInto(target, func(ptr any) error {
		return proto.Unmarshal(data, ptr.(proto.Message))
	})
}

func (protobufConverter) ToMessage(value any, ct MimeType, headers messaging.Headers) (messaging.Message, error) {
	pm, ok := value.(proto.Message)
	if !ok {
		return messaging.Message{}, fmt.Errorf("expected proto.Message, got %T", value)
	}
	data, err := proto.Marshal(pm)
	if err != nil {
		return messaging.Message{}, err
	}
	return newMessage(data, ct, headers), nil
}
