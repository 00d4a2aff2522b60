package binding

import "slices"

// Direction of a binding relative to the handler.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

func (d Direction) String() string {
	if d == DirectionOut {
		return "OUT"
	}
	return "IN"
}

// Parameter indexes that do not name a handler argument.
const (
	// ReturnIndex marks a binding fed by the handler's return value.
	ReturnIndex = -1
	// WholeMethod marks an input consumed by the handler as a whole rather
	// than by one parameter.
	WholeMethod = -2
)

// TargetKind distinguishes the two ways a handler produces output.
type TargetKind int

const (
	TargetReturnValue TargetKind = iota
	TargetHandle
)

// OutputTarget is where a handler's output goes: its return value, or an
// output handle parameter bound to its own channel.
type OutputTarget struct {
	Kind       TargetKind
	Channel    string
	ParamIndex int
}

// Binding associates a channel and direction with the handler element that
// owns it.
type Binding struct {
	Channel    string
	Direction  Direction
	Handler    string
	Component  string
	ParamIndex int
}

// ResolvedHandler is a descriptor with its channels resolved.
type ResolvedHandler struct {
	Descriptor *HandlerDescriptor
	Component  string
	Mode       Mode
	// Input is empty for producers.
	Input string
	// InputParam is the parameter consuming Input, or WholeMethod.
	InputParam int
	Outputs    []OutputTarget
}

func (h *ResolvedHandler) Name() string { return h.Descriptor.Name }

// ReturnTarget returns the target fed by the return value, if any.
func (h *ResolvedHandler) ReturnTarget() (OutputTarget, bool) {
	for _, t := range h.Outputs {
		if t.Kind == TargetReturnValue {
			return t, true
		}
	}
	return OutputTarget{}, false
}

// HandleTarget returns the target bound to the output handle at index.
func (h *ResolvedHandler) HandleTarget(index int) (OutputTarget, bool) {
	for _, t := range h.Outputs {
		if t.Kind == TargetHandle && t.ParamIndex == index {
			return t, true
		}
	}
	return OutputTarget{}, false
}

// Plan is the frozen result of Resolve. It is safe for concurrent readers
// and returns copies from its accessors.
type Plan struct {
	handlers []*ResolvedHandler
	byName   map[string]*ResolvedHandler
	byInput  map[string]*ResolvedHandler
	bindings []Binding
}

// ForInput returns the handler consuming channel.
func (p *Plan) ForInput(channel string) (*ResolvedHandler, bool) {
	h, ok := p.byInput[channel]
	return h, ok
}

// Handler returns the handler registered under name.
func (p *Plan) Handler(name string) (*ResolvedHandler, bool) {
	h, ok := p.byName[name]
	return h, ok
}

// Handlers returns the handlers in registration order.
func (p *Plan) Handlers() []*ResolvedHandler {
	return append([]*ResolvedHandler(nil), p.handlers...)
}

// Bindings returns every binding in registration order.
func (p *Plan) Bindings() []Binding {
	return append([]Binding(nil), p.bindings...)
}

// Channels returns the sorted, de-duplicated channels bound in dir.
func (p *Plan) Channels(dir Direction) []string {
	return p.channels(func(b Binding) bool { return b.Direction == dir })
}

// AllChannels returns every bound channel, sorted.
func (p *Plan) AllChannels() []string {
	return p.channels(func(Binding) bool { return true })
}

func (p *Plan) channels(keep func(Binding) bool) []string {
	out := make([]string, 0, len(p.bindings))
	for _, b := range p.bindings {
		if keep(b) {
			out = append(out, b.Channel)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
