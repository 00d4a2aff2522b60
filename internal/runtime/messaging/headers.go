package messaging

// Well-known header keys.
const (
	HeaderContentType   = "contentType"
	HeaderDestination   = "destination"
	HeaderCorrelationID = "correlation_id"
)

// Headers represents the key/value pairs carried alongside a payload.
type Headers map[string]string

func (h Headers) cloneWithExtra(extra int) Headers {
	size := len(h) + extra
	if size <= 0 {
		return Headers{}
	}
	cloned := make(Headers, size)
	for k, v := range h {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the headers.
func (h Headers) Clone() Headers {
	return h.cloneWithExtra(0)
}

// With returns a copy of the headers containing key=value.
func (h Headers) With(key, value string) Headers {
	cloned := h.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a copy of the headers overlaid with entries. Keys present in
// entries win.
func (h Headers) WithAll(entries map[string]string) Headers {
	cloned := h.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// WithDefault returns a copy of the headers with key=value set only when key
// is absent or empty.
func (h Headers) WithDefault(key, value string) Headers {
	if h[key] != "" || value == "" {
		return h.Clone()
	}
	return h.With(key, value)
}

// NewHeaders constructs Headers from alternating key/value pairs. A trailing
// key without a value is ignored.
func NewHeaders(pairs ...string) Headers {
	h := make(Headers, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		h[pairs[i]] = pairs[i+1]
	}
	return h
}
