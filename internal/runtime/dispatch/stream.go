package dispatch

import (
	"context"
	"fmt"

	"github.com/drblury/flowbind/internal/runtime/binding"
	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	"github.com/drblury/flowbind/internal/runtime/logging"
	"github.com/drblury/flowbind/internal/runtime/messaging"
	"github.com/drblury/flowbind/internal/runtime/reactive"
)

// Launch invokes a streaming handler once. Stream inputs are fed from the
// input channel, output handles and a returned stream each get their own
// bridge. Bridges live until ctx ends or they reach a terminal state.
func (inv *Invoker) Launch(ctx context.Context, h *binding.ResolvedHandler) error {
	if h.Mode != binding.ModeStreaming {
		return failed(h.Name(), h.Input, errspkg.KindHandler, fmt.Errorf("handler is not a streaming handler"))
	}

	params := h.Descriptor.Params
	args := make([]any, len(params))
	for i, p := range params {
		switch p.Role {
		case binding.RoleStreamInput:
			pub, err := inv.inputStream(ctx, h, p)
			if err != nil {
				return err
			}
			args[i] = pub
		case binding.RoleStreamOutput:
			target, ok := h.HandleTarget(i)
			if !ok {
				return failed(h.Name(), "", errspkg.KindHandler, fmt.Errorf("parameter %d has no output binding", i))
			}
			args[i] = reactive.NewSender(target.Channel, func(pub reactive.Publisher[any]) error {
				return inv.startBridge(ctx, h, target.Channel, pub)
			})
		default:
			return failed(h.Name(), h.Input, errspkg.KindHandler, fmt.Errorf("parameter %d: role %s is not valid for streaming", i, p.Role))
		}
	}

	result, err := call(ctx, h, args)
	if err != nil {
		return failed(h.Name(), h.Input, errspkg.KindHandler, err)
	}

	target, ok := h.ReturnTarget()
	if !ok {
		return nil
	}
	pub, ok := result.(reactive.Publisher[any])
	if !ok || isNil(result) {
		return failed(h.Name(), target.Channel, errspkg.KindHandler, fmt.Errorf("handler returned %T instead of a stream", result))
	}
	return inv.startBridge(ctx, h, target.Channel, pub)
}

func (inv *Invoker) startBridge(ctx context.Context, h *binding.ResolvedHandler, channel string, pub reactive.Publisher[any]) error {
	props := inv.props.Binding(channel)
	name := h.Name()
	b := reactive.NewBridge(reactive.BridgeConfig{
		Handler:  name,
		Channel:  channel,
		Prefetch: int64(props.Prefetch),
		Send: func(ctx context.Context, v any) error {
			return inv.Send(ctx, name, channel, v, nil)
		},
		OnTransition: inv.transition,
	})

	inv.mu.Lock()
	inv.bridges = append(inv.bridges, b)
	inv.mu.Unlock()

	return b.Start(ctx, pub)
}

func (inv *Invoker) transition(b *reactive.Bridge, from, to reactive.State) {
	fields := logging.LogFields{
		"handler": b.Handler(),
		"channel": b.Channel(),
		"from":    from.String(),
		"to":      to.String(),
	}
	if to == reactive.StateFailed {
		inv.logger.Error("Stream bridge failed", b.Err(), fields)
	} else {
		inv.logger.Debug("Stream bridge state changed", fields)
	}
	if inv.observe != nil {
		inv.observe(b, from, to)
	}
}

type delivery struct {
	value any
	done  chan error
}

// inputStream exposes the handler's input channel as a publisher of
// converted payloads. Each subscription subscribes to the channel; a message
// is acknowledged once the subscriber has consumed it, so the channel never
// runs ahead of demand. A payload that cannot be converted fails the stream.
func (inv *Invoker) inputStream(ctx context.Context, h *binding.ResolvedHandler, p binding.Param) (reactive.Publisher[any], error) {
	handle, err := inv.channels.Lookup(h.Input)
	if err != nil {
		return nil, failed(h.Name(), h.Input, errspkg.KindHandler, err)
	}
	name, channel := h.Name(), h.Input

	return reactive.Generate(func(genCtx context.Context, emit func(any) error) error {
		subCtx, cancel := context.WithCancel(genCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		deliveries := make(chan delivery)
		failures := make(chan error, 1)

		err := handle.Subscribe(subCtx, func(_ context.Context, msg messaging.Message) error {
			v, err := inv.convert(msg, p.Type)
			if err != nil {
				select {
				case failures <- failed(name, channel, errspkg.KindConversion, err):
				default:
				}
				return nil
			}
			d := delivery{value: v, done: make(chan error, 1)}
			select {
			case deliveries <- d:
			case <-subCtx.Done():
				return subCtx.Err()
			}
			select {
			case err := <-d.done:
				return err
			case <-subCtx.Done():
				return subCtx.Err()
			}
		})
		if err != nil {
			return failed(name, channel, errspkg.KindHandler, err)
		}

		for {
			select {
			case <-subCtx.Done():
				if ctx.Err() != nil {
					return nil
				}
				return genCtx.Err()
			case err := <-failures:
				return err
			case d := <-deliveries:
				err := emit(d.value)
				d.done <- err
				if err != nil {
					return err
				}
			}
		}
	}), nil
}
