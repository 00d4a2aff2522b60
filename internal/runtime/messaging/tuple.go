package messaging

// Field is one named entry of a Tuple.
type Field struct {
	Name  string
	Value any
}

// Tuple is an ordered list of named values. Field order is preserved when a
// tuple is rendered to or parsed from JSON. Parsed integers are int64, other
// numbers float64, nested arrays []any and nested objects map[string]any.
type Tuple []Field

// NewTuple builds a Tuple from alternating name/value pairs. Non-string names
// and a trailing name without a value are skipped.
func NewTuple(pairs ...any) Tuple {
	t := make(Tuple, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			continue
		}
		t = append(t, Field{Name: name, Value: pairs[i+1]})
	}
	return t
}

// Get returns the value of the first field called name.
func (t Tuple) Get(name string) (any, bool) {
	for _, f := range t {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (t Tuple) Names() []string {
	names := make([]string, len(t))
	for i, f := range t {
		names[i] = f.Name
	}
	return names
}

// Put returns a copy of the tuple with name set to value. Existing fields
// keep their position; new fields are appended.
func (t Tuple) Put(name string, value any) Tuple {
	out := make(Tuple, len(t), len(t)+1)
	copy(out, t)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Name: name, Value: value})
}
