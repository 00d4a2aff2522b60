package converters

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	"github.com/drblury/flowbind/internal/runtime/messaging"
)

type order struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

type point struct {
	X, Y int
}

type label string

func roundTrip(t *testing.T, r *Registry, value any, contentType string, target reflect.Type) (messaging.Message, any) {
	t.Helper()
	msg, err := r.ToMessage(value, contentType, nil)
	require.NoError(t, err)
	_, isBytes := msg.Bytes()
	require.True(t, isBytes, "converted payload must be bytes")
	got, err := r.FromMessage(msg, target)
	require.NoError(t, err)
	return msg, got
}

func TestRoundTripBuiltins(t *testing.T) {
	r := NewRegistry()

	t.Run("tuple", func(t *testing.T) {
		in := messaging.NewTuple("name", "ada", "age", int64(36), "score", 1.5,
			"tags", []any{"x", int64(2)}, "meta", map[string]any{"level": int64(3)})
		msg, got := roundTrip(t, r, in, ContentTypeJSON, reflect.TypeOf(messaging.Tuple(nil)))
		assert.JSONEq(t, `{"name":"ada","age":36,"score":1.5,"tags":["x",2],"meta":{"level":3}}`, string(msg.Payload.([]byte)))
		assert.Equal(t, in, got)
		assert.Equal(t, []string{"name", "age", "score", "tags", "meta"}, got.(messaging.Tuple).Names())
	})

	t.Run("struct as json", func(t *testing.T) {
		in := order{ID: "o-1", Qty: 3}
		msg, got := roundTrip(t, r, in, "", reflect.TypeOf(order{}))
		assert.Equal(t, ContentTypeJSON, msg.ContentType())
		assert.Equal(t, in, got)
	})

	t.Run("struct pointer as json", func(t *testing.T) {
		in := &order{ID: "o-2", Qty: 1}
		_, got := roundTrip(t, r, in, ContentTypeJSON, reflect.TypeOf(&order{}))
		assert.Equal(t, in, got)
	})

	t.Run("proto as json", func(t *testing.T) {
		in := wrapperspb.String("hello")
		msg, got := roundTrip(t, r, in, ContentTypeJSON, reflect.TypeOf(&wrapperspb.StringValue{}))
		assert.Equal(t, `"hello"`, string(msg.Payload.([]byte)))
		assert.True(t, proto.Equal(in, got.(proto.Message)))
	})

	t.Run("string", func(t *testing.T) {
		msg, got := roundTrip(t, r, "hello", "", reflect.TypeOf(""))
		assert.Equal(t, ContentTypeText, msg.ContentType())
		assert.Equal(t, "hello", got)
	})

	t.Run("named string kind", func(t *testing.T) {
		_, got := roundTrip(t, r, label("blue"), ContentTypeText, reflect.TypeOf(label("")))
		assert.Equal(t, label("blue"), got)
	})

	t.Run("go serialized", func(t *testing.T) {
		in := point{X: 1, Y: 2}
		msg, got := roundTrip(t, r, in, ContentTypeGoSerialized, reflect.TypeOf(point{}))
		assert.Equal(t, ContentTypeGoSerialized, msg.ContentType())
		assert.Equal(t, in, got)
	})

	t.Run("protobuf binary", func(t *testing.T) {
		in := wrapperspb.Int64(7)
		_, got := roundTrip(t, r, in, ContentTypeProtobuf, reflect.TypeOf(&wrapperspb.Int64Value{}))
		assert.True(t, proto.Equal(in, got.(proto.Message)))
	})

	t.Run("bytes", func(t *testing.T) {
		msg, got := roundTrip(t, r, []byte("raw"), "", reflect.TypeOf([]byte(nil)))
		assert.Equal(t, ContentTypeOctetStream, msg.ContentType())
		assert.Equal(t, []byte("raw"), got)
	})
}

func TestObjectToString(t *testing.T) {
	r := NewRegistry()

	msg, err := r.ToMessage(42, ContentTypeText, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", string(msg.Payload.([]byte)))

	msg, err = r.ToMessage(wrapperspb.String("x"), ContentTypeText, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.Payload)
}

func TestJSONToStringKeepsDocument(t *testing.T) {
	r := NewRegistry()
	msg := messaging.New([]byte(`{"a":1}`), messaging.NewHeaders(messaging.HeaderContentType, ContentTypeJSON))

	got, err := r.FromMessage(msg, reflect.TypeOf(""))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)
}

func TestToMessageKeepsHeaders(t *testing.T) {
	r := NewRegistry()
	headers := messaging.NewHeaders("trace", "abc", messaging.HeaderContentType, "stale/type")

	msg, err := r.ToMessage("hi", ContentTypeText, headers)
	require.NoError(t, err)
	assert.Equal(t, "abc", msg.Header("trace"))
	assert.Equal(t, ContentTypeText, msg.ContentType())
	assert.Equal(t, "stale/type", headers[messaging.HeaderContentType], "input headers must not be mutated")
}

func TestFromMessageDefaultsContentType(t *testing.T) {
	r := NewRegistry()

	got, err := r.FromMessage(messaging.Message{Payload: []byte(`{"id":"o-9","qty":2}`)}, reflect.TypeOf(order{}))
	require.NoError(t, err)
	assert.Equal(t, order{ID: "o-9", Qty: 2}, got)

	got, err = r.FromMessage(messaging.Message{Payload: []byte("plain")}, reflect.TypeOf(""))
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestFromMessagePassesThroughAssignablePayload(t *testing.T) {
	r := NewRegistry()
	in := order{ID: "o-3"}

	got, err := r.FromMessage(messaging.Message{Payload: in}, reflect.TypeOf(order{}))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestNoConverterFound(t *testing.T) {
	r := NewRegistry()
	msg := messaging.New([]byte("<order/>"), messaging.NewHeaders(messaging.HeaderContentType, "application/xml"))

	_, err := r.FromMessage(msg, reflect.TypeOf(order{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errspkg.ErrNoConverterFound))
	var nc *errspkg.NoConverterFoundError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, errspkg.DirectionReceive, nc.Direction)
	assert.Equal(t, "application/xml", nc.ContentType)

	_, err = r.ToMessage(order{}, "application/xml", nil)
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, errspkg.DirectionSend, nc.Direction)
}

func TestMalformedPayloadIsNotNoConverter(t *testing.T) {
	r := NewRegistry()
	msg := messaging.New([]byte(`{bad`), messaging.NewHeaders(messaging.HeaderContentType, ContentTypeJSON))

	_, err := r.FromMessage(msg, reflect.TypeOf(order{}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, errspkg.ErrNoConverterFound))
	assert.True(t, strings.HasPrefix(err.Error(), "json-to-object: "), err.Error())
}

func TestFromMessageRejectsNil(t *testing.T) {
	r := NewRegistry()
	if _, err := r.FromMessage(messaging.Message{}, reflect.TypeOf("")); err == nil {
		t.Fatal("expected error for nil payload")
	}
	if _, err := r.FromMessage(messaging.Message{Payload: []byte("x")}, nil); err == nil {
		t.Fatal("expected error for nil target")
	}
	if _, err := r.ToMessage(nil, ContentTypeJSON, nil); err == nil {
		t.Fatal("expected error for nil value")
	}
}

func TestDefaultOrder(t *testing.T) {
	var names []string
	for _, c := range NewRegistry().Converters() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{
		"json-to-tuple",
		"tuple-to-json",
		"json-to-object",
		"object-to-json",
		"bytes-to-string",
		"string-to-bytes",
		"object-to-string",
		"object-to-go-serialized",
		"go-serialized-to-object",
		"protobuf",
	}, names)
}

func TestUserConvertersTakePriority(t *testing.T) {
	shout, err := NewFuncConverter[string]("shout", "text/*",
		func(b []byte) (string, error) { return strings.ToUpper(string(b)), nil },
		nil,
	)
	require.NoError(t, err)
	whisper, err := NewFuncConverter[string]("whisper", "text/plain",
		func(b []byte) (string, error) { return strings.ToLower(string(b)), nil },
		nil,
	)
	require.NoError(t, err)

	r := NewRegistry()
	r.Register(whisper, PriorityDefault)
	r.Register(shout, PriorityUser)

	convs := r.Converters()
	assert.Equal(t, "shout", convs[0].Name())
	assert.Equal(t, "whisper", convs[len(convs)-1].Name())

	msg := messaging.New([]byte("Hello"), messaging.NewHeaders(messaging.HeaderContentType, ContentTypeText))
	got, err := r.FromMessage(msg, reflect.TypeOf(""))
	require.NoError(t, err)
	assert.Equal(t, "HELLO", got)

	c, err := r.ResolveForReceive(ContentTypeText, reflect.TypeOf(""))
	require.NoError(t, err)
	assert.Equal(t, "shout", c.Name())

	// Send side is untouched: shout has no encoder.
	c, err = r.ResolveForSend(ContentTypeText, reflect.TypeOf(""))
	require.NoError(t, err)
	assert.Equal(t, "string-to-bytes", c.Name())
}

func TestFuncConverterWildcardRange(t *testing.T) {
	csv, err := NewFuncConverter[point]("point-csv", "text/*+csv",
		nil,
		func(p point) ([]byte, error) { return []byte("1,2"), nil },
	)
	require.NoError(t, err)

	r := NewRegistry()
	r.Register(csv, PriorityUser)

	msg, err := r.ToMessage(point{X: 1, Y: 2}, "text/vnd.point+csv", nil)
	require.NoError(t, err)
	assert.Equal(t, "1,2", string(msg.Payload.([]byte)))
	assert.Equal(t, "text/vnd.point+csv", msg.ContentType())

	c, err := r.ResolveForSend(ContentTypeText, reflect.TypeOf(point{}))
	require.NoError(t, err)
	assert.Equal(t, "object-to-string", c.Name())
}

func TestNewFuncConverterValidation(t *testing.T) {
	_, err := NewFuncConverter[string]("", "text/plain", func([]byte) (string, error) { return "", nil }, nil)
	assert.Error(t, err)
	_, err = NewFuncConverter[string]("none", "text/plain", nil, nil)
	assert.Error(t, err)
	_, err = NewFuncConverter[string]("bad", "not a type", func([]byte) (string, error) { return "", nil }, nil)
	assert.Error(t, err)
}

func TestMimeType(t *testing.T) {
	ct, err := ParseMimeType("Application/Vnd.Api+JSON; charset=UTF-8")
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.api+json", ct.Essence())
	assert.True(t, ct.IsJSON())
	assert.Equal(t, "UTF-8", ct.Charset())

	cases := []struct {
		pattern, value string
		want           bool
	}{
		{"*/*", "text/plain", true},
		{"application/*", "application/json", true},
		{"application/*", "text/plain", false},
		{"application/*+json", "application/vnd.api+json", true},
		{"application/*+json", "application/json", true},
		{"application/*+json", "application/xml", false},
		{"text/plain", "text/plain", true},
		{"text/plain", "text/html", false},
	}
	for _, tc := range cases {
		got := MustParseMimeType(tc.pattern).Includes(MustParseMimeType(tc.value))
		if got != tc.want {
			t.Errorf("%s includes %s = %v, want %v", tc.pattern, tc.value, got, tc.want)
		}
	}

	_, err = ParseMimeType("plain")
	assert.Error(t, err)
}

func TestDefaultContentType(t *testing.T) {
	assert.Equal(t, ContentTypeOctetStream, DefaultContentType(reflect.TypeOf([]byte(nil))))
	assert.Equal(t, ContentTypeText, DefaultContentType(reflect.TypeOf(label(""))))
	assert.Equal(t, ContentTypeJSON, DefaultContentType(reflect.TypeOf(order{})))
}

func TestCharsetRestrictsTextConverters(t *testing.T) {
	r := NewRegistry()
	_, err := r.ResolveForReceive("text/plain; charset=iso-8859-1", reflect.TypeOf(""))
	assert.True(t, errors.Is(err, errspkg.ErrNoConverterFound))
}
