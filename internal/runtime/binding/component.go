package binding

import "slices"

// Conventional channel names of the Source, Sink and Processor shapes.
const (
	InputChannel  = "input"
	OutputChannel = "output"
)

// Component groups handlers with the channels they may bind, like an
// interface declaring named ports.
type Component struct {
	Name     string
	Inputs   []string
	Outputs  []string
	Handlers []*HandlerDescriptor
}

// Source declares a component with a single "output" channel.
func Source(name string, handlers ...*HandlerDescriptor) Component {
	return Component{Name: name, Outputs: []string{OutputChannel}, Handlers: handlers}
}

// Sink declares a component with a single "input" channel.
func Sink(name string, handlers ...*HandlerDescriptor) Component {
	return Component{Name: name, Inputs: []string{InputChannel}, Handlers: handlers}
}

// Processor declares a component with "input" and "output" channels.
func Processor(name string, handlers ...*HandlerDescriptor) Component {
	return Component{
		Name:     name,
		Inputs:   []string{InputChannel},
		Outputs:  []string{OutputChannel},
		Handlers: handlers,
	}
}

// With returns a copy of c with handlers appended.
func (c Component) With(handlers ...*HandlerDescriptor) Component {
	c.Handlers = append(append([]*HandlerDescriptor(nil), c.Handlers...), handlers...)
	return c
}

func (c Component) declaresInput(name string) bool  { return slices.Contains(c.Inputs, name) }
func (c Component) declaresOutput(name string) bool { return slices.Contains(c.Outputs, name) }
