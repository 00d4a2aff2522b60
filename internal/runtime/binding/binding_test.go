package binding

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
)

var stringType = reflect.TypeOf("")

func noop(context.Context, []any) (any, error) { return nil, nil }

func listener(name string) *HandlerDescriptor {
	return &HandlerDescriptor{
		Name:    name,
		Params:  []Param{{Role: RolePayload, Type: stringType}},
		Returns: ReturnValue,
		Invoke:  noop,
	}
}

func sinkHandler(name string) *HandlerDescriptor {
	return &HandlerDescriptor{
		Name:   name,
		Params: []Param{{Role: RolePayload, Type: stringType}},
		Invoke: noop,
	}
}

func transform(name string) *HandlerDescriptor {
	return &HandlerDescriptor{
		Name:   name,
		Params: []Param{{Role: RoleStreamInput, Type: stringType}, {Role: RoleStreamOutput}},
		Invoke: noop,
	}
}

func emitter(name string) *HandlerDescriptor {
	return &HandlerDescriptor{Name: name, Returns: ReturnStream, ReturnType: stringType, Invoke: noop}
}

func requireAmbiguous(t *testing.T, err error) *errspkg.AmbiguousChannelBindingError {
	t.Helper()
	require.Error(t, err)
	var amb *errspkg.AmbiguousChannelBindingError
	require.True(t, errors.As(err, &amb), "expected ambiguous binding, got %v", err)
	assert.ErrorIs(t, err, errspkg.ErrAmbiguousChannelBinding)
	return amb
}

func TestResolveUnaryListener(t *testing.T) {
	plan, err := Resolve(Processor("upper", listener("uppercase").In(InputChannel).Out(OutputChannel)))
	require.NoError(t, err)

	h, ok := plan.ForInput("input")
	require.True(t, ok)
	assert.Equal(t, "uppercase", h.Name())
	assert.Equal(t, ModeUnary, h.Mode)
	assert.Equal(t, WholeMethod, h.InputParam)

	target, ok := h.ReturnTarget()
	require.True(t, ok)
	assert.Equal(t, "output", target.Channel)

	assert.Equal(t, []Binding{
		{Channel: "input", Direction: DirectionIn, Handler: "uppercase", Component: "upper", ParamIndex: WholeMethod},
		{Channel: "output", Direction: DirectionOut, Handler: "uppercase", Component: "upper", ParamIndex: ReturnIndex},
	}, plan.Bindings())
	assert.Equal(t, []string{"input"}, plan.Channels(DirectionIn))
	assert.Equal(t, []string{"output"}, plan.Channels(DirectionOut))
	assert.Equal(t, []string{"input", "output"}, plan.AllChannels())
}

func TestResolveParamLevelInputEquivalent(t *testing.T) {
	methodLevel, err := Resolve(Sink("a", sinkHandler("log").In("input")))
	require.NoError(t, err)
	paramLevel, err := Resolve(Sink("a", sinkHandler("log").PayloadFrom(0, "input")))
	require.NoError(t, err)
	both, err := Resolve(Sink("a", sinkHandler("log").In("input").PayloadFrom(0, "input")))
	require.NoError(t, err)

	for _, p := range []*Plan{methodLevel, paramLevel, both} {
		h, ok := p.ForInput("input")
		require.True(t, ok)
		assert.Equal(t, "log", h.Name())
	}
	h, _ := paramLevel.ForInput("input")
	assert.Equal(t, 0, h.InputParam)
}

func TestResolveDuplicateInput(t *testing.T) {
	_, err := Resolve(Processor("dup",
		listener("first").In("input").Out("output"),
		listener("second").In("input").Out("output"),
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrDuplicateChannelBinding)

	var dup *errspkg.DuplicateChannelBindingError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "input", dup.Channel)
	assert.Equal(t, "first", dup.First)
	assert.Equal(t, "second", dup.Second)
	for _, want := range []string{`"input"`, `"first"`, `"second"`} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestResolveDuplicateInputAcrossComponents(t *testing.T) {
	_, err := Resolve(
		Sink("one", sinkHandler("a").In("input")),
		Sink("two", sinkHandler("b").In("input")),
	)
	assert.ErrorIs(t, err, errspkg.ErrDuplicateChannelBinding)
}

func TestResolveSharedOutputAllowed(t *testing.T) {
	comp := Component{
		Name:    "fan-in",
		Inputs:  []string{"a", "b"},
		Outputs: []string{"out"},
		Handlers: []*HandlerDescriptor{
			listener("from-a").In("a").Out("out"),
			listener("from-b").In("b").Out("out"),
		},
	}
	plan, err := Resolve(comp)
	require.NoError(t, err)
	assert.Len(t, plan.Handlers(), 2)
}

func TestPlanChannelsAreDistinctAndSorted(t *testing.T) {
	comp := Component{
		Name:    "chain",
		Inputs:  []string{"start", "start2", "mid"},
		Outputs: []string{"mid", "end"},
		Handlers: []*HandlerDescriptor{
			listener("first").In("start").Out("mid"),
			listener("second").In("mid").Out("end"),
			listener("again").In("start2").Out("mid"),
		},
	}
	plan, err := Resolve(comp)
	require.NoError(t, err)

	assert.Equal(t, []string{"mid", "start", "start2"}, plan.Channels(DirectionIn))
	assert.Equal(t, []string{"end", "mid"}, plan.Channels(DirectionOut))
	assert.Equal(t, []string{"end", "mid", "start", "start2"}, plan.AllChannels())
}

func TestResolveDuplicateHandlerName(t *testing.T) {
	comp := Component{
		Name:     "c",
		Inputs:   []string{"a", "b"},
		Handlers: []*HandlerDescriptor{sinkHandler("h").In("a"), sinkHandler("h").In("b")},
	}
	_, err := Resolve(comp)
	assert.ErrorIs(t, err, errspkg.ErrDuplicateHandlerName)
}

func TestResolveStreamingStyles(t *testing.T) {
	t.Run("parameter level input and output", func(t *testing.T) {
		plan, err := Resolve(Processor("p", transform("t").StreamIn(0, "input").StreamOut(1, "output")))
		require.NoError(t, err)
		h, ok := plan.ForInput("input")
		require.True(t, ok)
		assert.Equal(t, ModeStreaming, h.Mode)
		assert.Equal(t, 0, h.InputParam)
		target, ok := h.HandleTarget(1)
		require.True(t, ok)
		assert.Equal(t, "output", target.Channel)
	})

	t.Run("method level input and output", func(t *testing.T) {
		plan, err := Resolve(Processor("p", transform("t").In("input").Out("output")))
		require.NoError(t, err)
		h, _ := plan.ForInput("input")
		target, ok := h.HandleTarget(1)
		require.True(t, ok)
		assert.Equal(t, "output", target.Channel)
	})

	t.Run("stream return with method level channels", func(t *testing.T) {
		d := &HandlerDescriptor{
			Name:    "t",
			Input:   "input",
			Output:  "output",
			Params:  []Param{{Role: RoleStreamInput, Type: stringType}},
			Returns: ReturnStream,
			Invoke:  noop,
		}
		plan, err := Resolve(Processor("p", d))
		require.NoError(t, err)
		h, _ := plan.ForInput("input")
		_, ok := h.ReturnTarget()
		assert.True(t, ok)
	})

	t.Run("equivalent styles yield the same bindings", func(t *testing.T) {
		a, err := Resolve(Processor("p", transform("t").StreamIn(0, "input").StreamOut(1, "output")))
		require.NoError(t, err)
		b, err := Resolve(Processor("p", transform("t").In("input").Out("output")))
		require.NoError(t, err)
		assert.Equal(t, a.Bindings(), b.Bindings())
	})
}

func TestResolveUndecoratedStreamInputWithDecoratedOutput(t *testing.T) {
	_, err := Resolve(Processor("p", transform("t").In("input").StreamOut(1, "output")))
	amb := requireAmbiguous(t, err)
	assert.Equal(t, "t", amb.Handler)
	assert.Contains(t, amb.Reason, "declare the input on the stream parameter")
}

func TestResolveAmbiguousCases(t *testing.T) {
	cases := map[string]*HandlerDescriptor{
		"conflicting input names": transform("t").In("input").StreamIn(0, "other").StreamOut(1, "output"),
		"stream input without channel": transform("t").StreamOut(1, "output"),
		"two stream inputs": {
			Name:   "t",
			Params: []Param{{Role: RoleStreamInput, Channel: "input"}, {Role: RoleStreamInput, Channel: "input"}},
			Invoke: noop,
		},
		"payload in streaming handler": {
			Name:   "t",
			Input:  "input",
			Params: []Param{{Role: RolePayload}, {Role: RoleStreamOutput, Channel: "output"}},
			Invoke: noop,
		},
		"undecorated handles": {
			Name:   "t",
			Output: "output",
			Params: []Param{{Role: RoleStreamOutput}, {Role: RoleStreamOutput}},
			Invoke: noop,
		},
		"same output twice": {
			Name:   "t",
			Params: []Param{{Role: RoleStreamOutput, Channel: "output"}, {Role: RoleStreamOutput, Channel: "output"}},
			Invoke: noop,
		},
		"return value without output":  listener("t").In("input"),
		"declared output never used":   sinkHandler("t").In("input").Out("output"),
		"stream return without output": emitter("t"),
		"unary without input":          sinkHandler("t"),
		"method input without stream param": {
			Name:    "t",
			Input:   "input",
			Output:  "output",
			Returns: ReturnStream,
			Invoke:  noop,
		},
		"scalar return from streaming handler": {
			Name:    "t",
			Params:  []Param{{Role: RoleStreamInput, Channel: "input"}},
			Returns: ReturnValue,
			Output:  "output",
			Invoke:  noop,
		},
		"conflicting payload channels": {
			Name:   "t",
			Params: []Param{{Role: RolePayload, Channel: "input"}, {Role: RoleRawMessage, Channel: "output"}},
			Invoke: noop,
		},
		"bad parameter index":  sinkHandler("t").In("input").StreamIn(4, "input"),
		"wrong parameter role": sinkHandler("t").In("input").StreamIn(0, "input"),
	}

	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(Processor("p", d))
			requireAmbiguous(t, err)
		})
	}
}

func TestResolveUnknownChannel(t *testing.T) {
	_, err := Resolve(Sink("s", sinkHandler("h").In("orders")))
	require.Error(t, err)
	var nf *errspkg.ChannelNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "orders", nf.Channel)
	assert.Equal(t, "s", nf.Component)

	_, err = Resolve(Sink("s", listener("h").In("input").Out("output")))
	assert.ErrorIs(t, err, errspkg.ErrChannelNotFound)
}

func TestResolveFanOutEmitter(t *testing.T) {
	comp := Component{
		Name:    "fan",
		Outputs: []string{"a", "b", "c"},
		Handlers: []*HandlerDescriptor{{
			Name: "fan-out",
			Params: []Param{
				{Role: RoleStreamOutput, Channel: "a"},
				{Role: RoleStreamOutput, Channel: "b"},
				{Role: RoleStreamOutput, Channel: "c"},
			},
			Invoke: noop,
		}},
	}
	plan, err := Resolve(comp)
	require.NoError(t, err)

	h, ok := plan.Handler("fan-out")
	require.True(t, ok)
	assert.Equal(t, ModeStreaming, h.Mode)
	assert.Empty(t, h.Input)
	require.Len(t, h.Outputs, 3)
	for i, ch := range []string{"a", "b", "c"} {
		assert.Equal(t, ch, h.Outputs[i].Channel)
		assert.Equal(t, i, h.Outputs[i].ParamIndex)
	}
	assert.Empty(t, plan.Channels(DirectionIn))
}

func TestResolveIndependentEmitters(t *testing.T) {
	plan, err := Resolve(Source("src",
		emitter("first").Out("output"),
		emitter("second").Out("output"),
	))
	require.NoError(t, err)
	assert.Len(t, plan.Handlers(), 2)
}

func TestResolveCollectsAllErrors(t *testing.T) {
	_, err := Resolve(
		Component{Handlers: []*HandlerDescriptor{sinkHandler("x")}},
		Sink("s", sinkHandler("").In("input"), &HandlerDescriptor{Name: "no-invoke", Input: "input"}),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrComponentNameRequired)
	assert.ErrorIs(t, err, errspkg.ErrHandlerNameRequired)
	assert.ErrorIs(t, err, errspkg.ErrHandlerRequired)
	assert.Equal(t, 3, strings.Count(err.Error(), "flowbind:"))
}

func TestPlanIsFrozen(t *testing.T) {
	d := listener("h").In("input").Out("output")
	plan, err := Resolve(Processor("p", d))
	require.NoError(t, err)

	d.Input = "mutated"
	d.Params[0].Channel = "mutated"
	h, ok := plan.ForInput("input")
	require.True(t, ok)
	assert.Equal(t, "input", h.Descriptor.Input)
	assert.Empty(t, h.Descriptor.Params[0].Channel)

	bindings := plan.Bindings()
	bindings[0].Channel = "changed"
	assert.Equal(t, "input", plan.Bindings()[0].Channel)
}

func TestDescriptorMode(t *testing.T) {
	assert.Equal(t, ModeUnary, listener("h").Mode())
	assert.Equal(t, ModeStreaming, transform("h").Mode())
	assert.Equal(t, ModeStreaming, emitter("h").Mode())
	assert.Equal(t, "STREAM_INPUT", RoleStreamInput.String())
	assert.Equal(t, "UNARY", ModeUnary.String())
}
