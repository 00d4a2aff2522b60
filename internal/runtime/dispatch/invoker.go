// Package dispatch invokes resolved handlers: once per message for unary
// bindings and once at startup for streaming bindings.
package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/drblury/flowbind/internal/runtime/binding"
	"github.com/drblury/flowbind/internal/runtime/channels"
	"github.com/drblury/flowbind/internal/runtime/config"
	"github.com/drblury/flowbind/internal/runtime/converters"
	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	"github.com/drblury/flowbind/internal/runtime/logging"
	"github.com/drblury/flowbind/internal/runtime/messaging"
	"github.com/drblury/flowbind/internal/runtime/reactive"
)

var messageType = reflect.TypeFor[messaging.Message]()

// BindingSource supplies per-channel properties.
type BindingSource interface {
	Binding(channel string) config.BindingProperties
}

// Options tunes an Invoker.
type Options struct {
	Logger logging.ServiceLogger
	// OnTransition observes every bridge state change.
	OnTransition func(b *reactive.Bridge, from, to reactive.State)
}

// Invoker routes inbound messages to handlers and handler output to
// channels. It is safe for concurrent use; dispatches on different channels
// do not coordinate.
type Invoker struct {
	plan       *binding.Plan
	channels   *channels.Registry
	converters *converters.Registry
	props      BindingSource
	logger     logging.ServiceLogger
	observe    func(*reactive.Bridge, reactive.State, reactive.State)

	mu      sync.Mutex
	bridges []*reactive.Bridge
}

// NewInvoker creates an Invoker. A nil props applies channel defaults.
func NewInvoker(plan *binding.Plan, chans *channels.Registry, convs *converters.Registry, props BindingSource, opts Options) *Invoker {
	if props == nil {
		props = &config.Config{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Invoker{
		plan:       plan,
		channels:   chans,
		converters: convs,
		props:      props,
		logger:     logger,
		observe:    opts.OnTransition,
	}
}

// Plan returns the plan the invoker dispatches against.
func (inv *Invoker) Plan() *binding.Plan { return inv.plan }

// Dispatch delivers msg, received on channel, to its unary handler and
// sends any result to the handler's output channel. Failures are returned as
// HandlerInvocationFailedError; nothing is retried here.
func (inv *Invoker) Dispatch(ctx context.Context, channel string, msg messaging.Message) error {
	h, ok := inv.plan.ForInput(channel)
	if !ok {
		return &errspkg.ChannelNotFoundError{Channel: channel}
	}
	if h.Mode != binding.ModeUnary {
		return failed(h.Name(), channel, errspkg.KindHandler,
			fmt.Errorf("handler consumes %q as a stream", channel))
	}

	args, err := inv.arguments(h, msg)
	if err != nil {
		return failed(h.Name(), channel, errspkg.KindConversion, err)
	}

	result, err := call(messaging.NewContext(ctx, msg), h, args)
	if err != nil {
		return failed(h.Name(), channel, errspkg.KindHandler, err)
	}
	if isNil(result) {
		return nil
	}
	target, ok := h.ReturnTarget()
	if !ok {
		return nil
	}
	return inv.Send(ctx, h.Name(), target.Channel, result, &msg)
}

// Send converts value and sends it on channel. When value is a Message its
// headers are kept, then the channel's configured headers are applied and the
// destination header is set last. inbound, when given, supplies the
// correlation id for replies.
func (inv *Invoker) Send(ctx context.Context, handler, channel string, value any, inbound *messaging.Message) error {
	handle, err := inv.channels.Lookup(channel)
	if err != nil {
		return failed(handler, channel, errspkg.KindSend, err)
	}
	props := inv.props.Binding(channel)

	var headers messaging.Headers
	payload := value
	if m, ok := value.(messaging.Message); ok {
		headers = m.Headers.Clone()
		payload = m.Payload
	}
	if inbound != nil {
		headers = headers.WithDefault(messaging.HeaderCorrelationID, inbound.Header(messaging.HeaderCorrelationID))
	}

	contentType := props.ContentType
	if contentType == "" {
		contentType = headers[messaging.HeaderContentType]
	}
	out, err := inv.converters.ToMessage(payload, contentType, headers)
	if err != nil {
		return failed(handler, channel, errspkg.KindConversion, err)
	}

	destination := props.Destination
	if destination == "" {
		destination = handle.Destination()
	}
	out = out.WithHeaders(props.Headers).WithHeader(messaging.HeaderDestination, destination)

	if err := handle.Send(ctx, out); err != nil {
		return failed(handler, channel, errspkg.KindSend, err)
	}
	return nil
}

func (inv *Invoker) arguments(h *binding.ResolvedHandler, msg messaging.Message) ([]any, error) {
	params := h.Descriptor.Params
	args := make([]any, len(params))
	for i, p := range params {
		switch p.Role {
		case binding.RoleRawMessage:
			args[i] = msg
		case binding.RolePayload:
			v, err := inv.convert(msg, p.Type)
			if err != nil {
				return nil, fmt.Errorf("parameter %d: %w", i, err)
			}
			args[i] = v
		default:
			return nil, fmt.Errorf("parameter %d: role %s is not valid for unary dispatch", i, p.Role)
		}
	}
	return args, nil
}

func (inv *Invoker) convert(msg messaging.Message, target reflect.Type) (any, error) {
	switch target {
	case nil:
		return msg.Payload, nil
	case messageType:
		return msg, nil
	}
	return inv.converters.FromMessage(msg, target)
}

// Bridges returns every bridge started so far.
func (inv *Invoker) Bridges() []*reactive.Bridge {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]*reactive.Bridge(nil), inv.bridges...)
}

// CancelAll cancels every bridge and waits for each to settle.
func (inv *Invoker) CancelAll() {
	for _, b := range inv.Bridges() {
		b.Cancel()
	}
}

func call(ctx context.Context, h *binding.ResolvedHandler, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Descriptor.Invoke(ctx, args)
}

func failed(handler, channel string, kind errspkg.FailureKind, err error) error {
	return &errspkg.HandlerInvocationFailedError{Handler: handler, Channel: channel, Kind: kind, Err: err}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
