package converters

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/flowbind/internal/runtime/jsoncodec"
	"github.com/drblury/flowbind/internal/runtime/messaging"
)

// jsonToTupleConverter reads a JSON object into a Tuple, keeping document
// field order.
type jsonToTupleConverter struct{}

func (jsonToTupleConverter) Name() string { return "json-to-tuple" }

func (jsonToTupleConverter) CanConvertFrom(ct MimeType, target reflect.Type) bool {
	return ct.IsJSON() && target == tupleType
}

func (jsonToTupleConverter) CanConvertTo(MimeType, reflect.Type) bool { return false }

func (jsonToTupleConverter) FromMessage(msg messaging.Message, _ reflect.Type) (any, error) {
	data, ok := payloadBytes(msg)
	if !ok {
		return nil, fmt.Errorf("unsupported payload type %T", msg.Payload)
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("payload is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, errors.New("tuple payload must be a JSON object")
	}
	tuple := messaging.Tuple{}
	doc.ForEach(func(key, value gjson.Result) bool {
		tuple = append(tuple, messaging.Field{Name: key.String(), Value: tupleValue(value)})
		return true
	})
	return tuple, nil
}

// tupleValue is gjson's Value except that integer literals that fit in an
// int64 stay int64 instead of widening to float64.
func tupleValue(r gjson.Result) any {
	switch {
	case r.Type == gjson.Number:
		if n, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return n
		}
		return r.Num
	case r.IsArray():
		items := make([]any, 0)
		r.ForEach(func(_, v gjson.Result) bool {
			items = append(items, tupleValue(v))
			return true
		})
		return items
	case r.IsObject():
		fields := make(map[string]any)
		r.ForEach(func(k, v gjson.Result) bool {
			fields[k.String()] = tupleValue(v)
			return true
		})
		return fields
	default:
		return r.Value()
	}
}

func (jsonToTupleConverter) ToMessage(any, MimeType, messaging.Headers) (messaging.Message, error) {
	return messaging.Message{}, errors.New("json-to-tuple only reads messages")
}

// tupleToJSONConverter writes a Tuple as a JSON object in field order.
type tupleToJSONConverter struct{}

func (tupleToJSONConverter) Name() string { return "tuple-to-json" }

func (tupleToJSONConverter) CanConvertFrom(MimeType, reflect.Type) bool { return false }

func (tupleToJSONConverter) CanConvertTo(ct MimeType, source reflect.Type) bool {
	return ct.IsJSON() && source == tupleType
}

func (tupleToJSONConverter) FromMessage(messaging.Message, reflect.Type) (any, error) {
	return nil, errors.New("tuple-to-json only writes messages")
}

func (tupleToJSONConverter) ToMessage(value any, ct MimeType, headers messaging.Headers) (messaging.Message, error) {
	tuple, ok := value.(messaging.Tuple)
	if !ok {
		return messaging.Message{}, fmt.Errorf("expected messaging.Tuple, got %T", value)
	}
	doc := []byte("{}")
	for _, f := range tuple {
		if f.Name == "" {
			return messaging.Message{}, errors.New("tuple field name cannot be empty")
		}
		var err error
		doc, err = sjson.SetBytes(doc, gjson.Escape(f.Name), f.Value)
		if err != nil {
			return messaging.Message{}, fmt.Errorf("set tuple field %q: %w", f.Name, err)
		}
	}
	return newMessage(doc, ct, headers), nil
}

// jsonToObjectConverter unmarshals JSON into structs, maps, slices and
// protobuf messages. A plain string target receives the raw document.
type jsonToObjectConverter struct{}

func (jsonToObjectConverter) Name() string { return "json-to-object" }

func (jsonToObjectConverter) CanConvertFrom(ct MimeType, target reflect.Type) bool {
	return ct.IsJSON() && target != nil && target != bytesType
}

func (jsonToObjectConverter) CanConvertTo(MimeType, reflect.Type) bool { return false }

func (jsonToObjectConverter) FromMessage(msg messaging.Message, target reflect.Type) (any, error) {
	data, ok := payloadBytes(msg)
	if !ok {
		return nil, fmt.Errorf("unsupported payload type %T", msg.Payload)
	}
	if target == stringType {
		return string(data), nil
	}
	if isProtoMessage(target) {
		return decodeInto(target, func(ptr any) error {
			return protojson.Unmarshal(data, ptr.(proto.Message))
		})
	}
	return decodeInto(target, func(ptr any) error {
		return jsoncodec.Unmarshal(data, ptr)
	})
}

func (jsonToObjectConverter) ToMessage(any, MimeType, messaging.Headers) (messaging.Message, error) {
	return messaging.Message{}, errors.New("json-to-object only reads messages")
}

// objectToJSONConverter marshals values to JSON. Protobuf messages use the
// protojson mapping and a plain string is written verbatim.
type objectToJSONConverter struct{}

func (objectToJSONConverter) Name() string { return "object-to-json" }

func (objectToJSONConverter) CanConvertFrom(MimeType, reflect.Type) bool { return false }

func (objectToJSONConverter) CanConvertTo(ct MimeType, source reflect.Type) bool {
	return ct.IsJSON() && source != nil && source != bytesType
}

func (objectToJSONConverter) FromMessage(messaging.Message, reflect.Type) (any, error) {
	return nil, errors.New("object-to-json only writes messages")
}

func (objectToJSONConverter) ToMessage(value any, ct MimeType, headers messaging.Headers) (messaging.Message, error) {
	var (
		data []byte
		err  error
	)
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case proto.Message:
		data, err = protojson.Marshal(v)
	default:
		data, err = jsoncodec.Marshal(v)
	}
	if err != nil {
		return messaging.Message{}, err
	}
	return newMessage(data, ct, headers), nil
}
