package converters

import (
	"fmt"
	"mime"
	"strings"
)

// Well-known content types.
const (
	ContentTypeJSON         = "application/json"
	ContentTypeText         = "text/plain"
	ContentTypeOctetStream  = "application/octet-stream"
	ContentTypeGoSerialized = "application/x-go-serialized-object"
	ContentTypeProtobuf     = "application/x-protobuf"
)

// MimeType is a parsed media type. Type and Subtype are lower-cased; either
// may be "*".
type MimeType struct {
	Type    string
	Subtype string
	Params  map[string]string
}

// ParseMimeType parses values such as "application/json" or
// "text/plain; charset=utf-8".
func ParseMimeType(s string) (MimeType, error) {
	mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(s))
	if err != nil {
		return MimeType{}, fmt.Errorf("parse content type %q: %w", s, err)
	}
	typ, sub, ok := strings.Cut(mediaType, "/")
	if !ok || typ == "" || sub == "" {
		return MimeType{}, fmt.Errorf("parse content type %q: missing subtype", s)
	}
	return MimeType{Type: typ, Subtype: sub, Params: params}, nil
}

// MustParseMimeType is ParseMimeType for constants; it panics on error.
func MustParseMimeType(s string) MimeType {
	m, err := ParseMimeType(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Essence returns "type/subtype" without parameters.
func (m MimeType) Essence() string {
	return m.Type + "/" + m.Subtype
}

func (m MimeType) String() string {
	if len(m.Params) == 0 {
		return m.Essence()
	}
	return mime.FormatMediaType(m.Essence(), m.Params)
}

// Charset returns the charset parameter, or an empty string.
func (m MimeType) Charset() string {
	return m.Params["charset"]
}

// Suffix returns the structured syntax suffix, "json" for
// "application/vnd.api+json".
func (m MimeType) Suffix() string {
	if i := strings.LastIndexByte(m.Subtype, '+'); i >= 0 {
		return m.Subtype[i+1:]
	}
	return ""
}

// IsJSON reports whether the type is application/json or carries a +json
// suffix.
func (m MimeType) IsJSON() bool {
	return (m.Type == "application" && m.Subtype == "json") || m.Suffix() == "json"
}

// IsText reports whether the type belongs to the text/* family.
func (m MimeType) IsText() bool {
	return m.Type == "text"
}

// Includes reports whether m matches other, honouring wildcards in m:
// "*/*" matches everything, "application/*" any application subtype and
// "application/*+json" any application subtype with a +json suffix.
func (m MimeType) Includes(other MimeType) bool {
	if m.Type == "*" {
		return true
	}
	if m.Type != other.Type {
		return false
	}
	if m.Subtype == other.Subtype || m.Subtype == "*" {
		return true
	}
	if rest, ok := strings.CutPrefix(m.Subtype, "*+"); ok {
		return other.Suffix() == rest || other.Subtype == rest
	}
	return false
}

// EqualsEssence reports whether both types name the same type/subtype.
func (m MimeType) EqualsEssence(other MimeType) bool {
	return m.Type == other.Type && m.Subtype == other.Subtype
}
