// Package handlers builds handler descriptors from typed Go functions so the
// binding engine never reflects on application code.
package handlers

import (
	"context"
	"reflect"

	"github.com/drblury/flowbind/internal/runtime/binding"
	"github.com/drblury/flowbind/internal/runtime/messaging"
	"github.com/drblury/flowbind/internal/runtime/reactive"
)

var messageType = reflect.TypeFor[messaging.Message]()

func payloadParam[T any]() binding.Param {
	t := reflect.TypeFor[T]()
	if t == messageType {
		return binding.Param{Role: binding.RoleRawMessage}
	}
	return binding.Param{Role: binding.RolePayload, Type: t}
}

func returnKind[R any]() binding.ReturnKind {
	if reflect.TypeFor[R]() == messageType {
		return binding.ReturnMessage
	}
	return binding.ReturnValue
}

func arg[T any](args []any, i int) T {
	v, _ := args[i].(T)
	return v
}

// Listener consumes a payload of type T and returns a value for the output
// channel. A messaging.Message T receives the raw message; a
// messaging.Message R keeps the returned headers.
func Listener[T, R any](name string, fn func(ctx context.Context, in T) (R, error)) *binding.HandlerDescriptor {
	return &binding.HandlerDescriptor{
		Name:       name,
		Params:     []binding.Param{payloadParam[T]()},
		Returns:    returnKind[R](),
		ReturnType: reflect.TypeFor[R](),
		Invoke: func(ctx context.Context, args []any) (any, error) {
			out, err := fn(ctx, arg[T](args, 0))
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

// Consumer consumes a payload of type T and produces nothing.
func Consumer[T any](name string, fn func(ctx context.Context, in T) error) *binding.HandlerDescriptor {
	return &binding.HandlerDescriptor{
		Name:   name,
		Params: []binding.Param{payloadParam[T]()},
		Invoke: func(ctx context.Context, args []any) (any, error) {
			return nil, fn(ctx, arg[T](args, 0))
		},
	}
}

// MessageListener receives the raw inbound message.
func MessageListener[R any](name string, fn func(ctx context.Context, msg messaging.Message) (R, error)) *binding.HandlerDescriptor {
	return Listener(name, fn)
}

// MessageConsumer receives the raw inbound message and produces nothing.
func MessageConsumer(name string, fn func(ctx context.Context, msg messaging.Message) error) *binding.HandlerDescriptor {
	return Consumer(name, fn)
}

// MessageReturning returns a full message so the handler can set headers on
// its output. Configured channel headers and the destination still win.
func MessageReturning[T any](name string, fn func(ctx context.Context, in T) (messaging.Message, error)) *binding.HandlerDescriptor {
	return Listener(name, fn)
}

// Emitter is invoked once at startup and returns the stream to publish.
func Emitter[T any](name string, fn func(ctx context.Context) (reactive.Publisher[T], error)) *binding.HandlerDescriptor {
	return &binding.HandlerDescriptor{
		Name:       name,
		Returns:    binding.ReturnStream,
		ReturnType: reflect.TypeFor[T](),
		Invoke: func(ctx context.Context, _ []any) (any, error) {
			p, err := fn(ctx)
			if err != nil || p == nil {
				return nil, err
			}
			return reactive.Untyped(p), nil
		},
	}
}

// EmitterTo is invoked once at startup with an output handle. Bind the
// handle with Out, or with StreamOut(0, channel).
func EmitterTo(name string, fn func(ctx context.Context, out *reactive.Sender) error) *binding.HandlerDescriptor {
	return &binding.HandlerDescriptor{
		Name:   name,
		Params: []binding.Param{{Role: binding.RoleStreamOutput}},
		Invoke: func(ctx context.Context, args []any) (any, error) {
			return nil, fn(ctx, arg[*reactive.Sender](args, 0))
		},
	}
}

// FanOut is invoked once at startup with one output handle per channel, in
// the order given.
func FanOut(name string, channels []string, fn func(ctx context.Context, outs []*reactive.Sender) error) *binding.HandlerDescriptor {
	params := make([]binding.Param, len(channels))
	for i, ch := range channels {
		params[i] = binding.Param{Role: binding.RoleStreamOutput, Channel: ch}
	}
	return &binding.HandlerDescriptor{
		Name:   name,
		Params: params,
		Invoke: func(ctx context.Context, args []any) (any, error) {
			outs := make([]*reactive.Sender, len(args))
			for i := range args {
				outs[i] = arg[*reactive.Sender](args, i)
			}
			return nil, fn(ctx, outs)
		},
	}
}

// StreamTransform receives the input channel as a stream and returns the
// stream to publish.
func StreamTransform[T, R any](name string, fn func(ctx context.Context, in reactive.Publisher[T]) (reactive.Publisher[R], error)) *binding.HandlerDescriptor {
	return &binding.HandlerDescriptor{
		Name:       name,
		Params:     []binding.Param{{Role: binding.RoleStreamInput, Type: reflect.TypeFor[T]()}},
		Returns:    binding.ReturnStream,
		ReturnType: reflect.TypeFor[R](),
		Invoke: func(ctx context.Context, args []any) (any, error) {
			out, err := fn(ctx, reactive.Typed[T](arg[reactive.Publisher[any]](args, 0)))
			if err != nil || out == nil {
				return nil, err
			}
			return reactive.Untyped(out), nil
		},
	}
}

// StreamTransformTo receives the input stream and an output handle. Bind them
// with In/Out, or with StreamIn(0, ...) and StreamOut(1, ...).
func StreamTransformTo[T any](name string, fn func(ctx context.Context, in reactive.Publisher[T], out *reactive.Sender) error) *binding.HandlerDescriptor {
	return &binding.HandlerDescriptor{
		Name: name,
		Params: []binding.Param{
			{Role: binding.RoleStreamInput, Type: reflect.TypeFor[T]()},
			{Role: binding.RoleStreamOutput},
		},
		Invoke: func(ctx context.Context, args []any) (any, error) {
			in := reactive.Typed[T](arg[reactive.Publisher[any]](args, 0))
			return nil, fn(ctx, in, arg[*reactive.Sender](args, 1))
		},
	}
}

// StreamConsumer receives the input channel as a stream and subscribes to it
// itself.
func StreamConsumer[T any](name string, fn func(ctx context.Context, in reactive.Publisher[T]) error) *binding.HandlerDescriptor {
	return &binding.HandlerDescriptor{
		Name:   name,
		Params: []binding.Param{{Role: binding.RoleStreamInput, Type: reflect.TypeFor[T]()}},
		Invoke: func(ctx context.Context, args []any) (any, error) {
			return nil, fn(ctx, reactive.Typed[T](arg[reactive.Publisher[any]](args, 0)))
		},
	}
}
