// Package binding resolves handler descriptors into an immutable plan of
// channel bindings.
package binding

import (
	"context"
	"fmt"
	"reflect"
)

// Role is what a handler parameter receives.
type Role int

const (
	// RolePayload receives the converted message payload.
	RolePayload Role = iota
	// RoleRawMessage receives the inbound messaging.Message unchanged.
	RoleRawMessage
	// RoleStreamInput receives a publisher of converted payloads.
	RoleStreamInput
	// RoleStreamOutput receives a *reactive.Sender bound to an output.
	RoleStreamOutput
)

func (r Role) String() string {
	switch r {
	case RolePayload:
		return "PAYLOAD"
	case RoleRawMessage:
		return "RAW_MESSAGE"
	case RoleStreamInput:
		return "STREAM_INPUT"
	case RoleStreamOutput:
		return "STREAM_OUTPUT"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Param describes one handler argument.
type Param struct {
	Role Role
	// Channel is the per-parameter channel. Empty means undecorated.
	Channel string
	// Type is the payload type for RolePayload and the element type for
	// RoleStreamInput.
	Type reflect.Type
}

// ReturnKind classifies what a handler returns besides an error.
type ReturnKind int

const (
	ReturnNone ReturnKind = iota
	ReturnValue
	ReturnMessage
	ReturnStream
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnNone:
		return "none"
	case ReturnValue:
		return "value"
	case ReturnMessage:
		return "message"
	case ReturnStream:
		return "stream"
	default:
		return fmt.Sprintf("ReturnKind(%d)", int(k))
	}
}

// Mode is how a handler is invoked.
type Mode int

const (
	// ModeUnary invokes the handler once per inbound message.
	ModeUnary Mode = iota
	// ModeStreaming invokes the handler once at startup and bridges its
	// streams.
	ModeStreaming
)

func (m Mode) String() string {
	if m == ModeStreaming {
		return "STREAMING"
	}
	return "UNARY"
}

// InvokeFunc calls the application handler with arguments ordered as in
// HandlerDescriptor.Params.
type InvokeFunc func(ctx context.Context, args []any) (any, error)

// HandlerDescriptor is the metadata of one handler.
type HandlerDescriptor struct {
	Name string
	// Input is the method-level input channel.
	Input string
	// Output is the method-level output channel, used by the return value
	// or by a single undecorated output handle.
	Output     string
	Params     []Param
	Returns    ReturnKind
	ReturnType reflect.Type
	Invoke     InvokeFunc

	declErrs []error
}

// In declares the method-level input channel.
func (d *HandlerDescriptor) In(channel string) *HandlerDescriptor {
	d.Input = channel
	return d
}

// Out declares the method-level output channel.
func (d *HandlerDescriptor) Out(channel string) *HandlerDescriptor {
	d.Output = channel
	return d
}

// StreamIn binds the stream input parameter at index to channel.
func (d *HandlerDescriptor) StreamIn(index int, channel string) *HandlerDescriptor {
	return d.bindParam(index, channel, RoleStreamInput)
}

// StreamOut binds the output handle parameter at index to channel.
func (d *HandlerDescriptor) StreamOut(index int, channel string) *HandlerDescriptor {
	return d.bindParam(index, channel, RoleStreamOutput)
}

// PayloadFrom binds the payload parameter at index to channel.
func (d *HandlerDescriptor) PayloadFrom(index int, channel string) *HandlerDescriptor {
	return d.bindParam(index, channel, RolePayload)
}

func (d *HandlerDescriptor) bindParam(index int, channel string, role Role) *HandlerDescriptor {
	if index < 0 || index >= len(d.Params) {
		d.declErrs = append(d.declErrs, fmt.Errorf("parameter %d does not exist", index))
		return d
	}
	if d.Params[index].Role != role {
		d.declErrs = append(d.declErrs, fmt.Errorf("parameter %d is %s, not %s", index, d.Params[index].Role, role))
		return d
	}
	d.Params[index].Channel = channel
	return d
}

// Mode classifies the handler: streaming when any parameter or the return
// value is a stream.
func (d *HandlerDescriptor) Mode() Mode {
	if d.Returns == ReturnStream {
		return ModeStreaming
	}
	for _, p := range d.Params {
		if p.Role == RoleStreamInput || p.Role == RoleStreamOutput {
			return ModeStreaming
		}
	}
	return ModeUnary
}

func (d *HandlerDescriptor) clone() *HandlerDescriptor {
	c := *d
	c.Params = append([]Param(nil), d.Params...)
	c.declErrs = nil
	return &c
}

func (d *HandlerDescriptor) indexes(role Role) []int {
	var idx []int
	for i, p := range d.Params {
		if p.Role == role {
			idx = append(idx, i)
		}
	}
	return idx
}
