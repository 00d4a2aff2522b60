package jsoncodec

import (
	"bytes"
	"strings"
	"testing"
)

type order struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

func TestMarshalUnmarshal(t *testing.T) {
	in := order{ID: 42, Label: "flowbind"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"id":42,"label":"flowbind"}` {
		t.Fatalf("unexpected encoding %s", data)
	}

	var out order
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Fatalf("expected %#v, got %#v", in, out)
	}

	indented, err := MarshalIndent(in, "", "  ")
	if err != nil {
		t.Fatalf("marshal indent failed: %v", err)
	}
	if !strings.Contains(string(indented), "\n  \"id\"") {
		t.Fatalf("expected indented output, got %s", indented)
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte(`{"a":[1,2,3]}`)) {
		t.Fatal("expected object to be valid")
	}
	if Valid([]byte(`{"a":`)) {
		t.Fatal("expected truncated document to be invalid")
	}
}

func TestEncodeDecode(t *testing.T) {
	buf := &bytes.Buffer{}
	payload := order{ID: 7, Label: "stream"}

	if err := Encode(buf, payload); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded order
	if err := Decode(buf, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != payload {
		t.Fatalf("expected decoded payload to match, got %#v", decoded)
	}
}
