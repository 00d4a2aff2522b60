package binding

import (
	"errors"
	"fmt"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
)

// Resolve validates the handlers of every component and freezes them into a
// Plan. All problems found are returned together.
func Resolve(components ...Component) (*Plan, error) {
	plan := &Plan{
		byName:  map[string]*ResolvedHandler{},
		byInput: map[string]*ResolvedHandler{},
	}

	var errs []error
	for _, comp := range components {
		if comp.Name == "" {
			errs = append(errs, errspkg.ErrComponentNameRequired)
			continue
		}
		for _, d := range comp.Handlers {
			if err := plan.add(comp, d); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return plan, nil
}

func (p *Plan) add(comp Component, d *HandlerDescriptor) error {
	if d == nil {
		return fmt.Errorf("component %q: %w", comp.Name, errspkg.ErrHandlerRequired)
	}
	if d.Name == "" {
		return fmt.Errorf("component %q: %w", comp.Name, errspkg.ErrHandlerNameRequired)
	}
	if d.Invoke == nil {
		return fmt.Errorf("handler %q: %w", d.Name, errspkg.ErrHandlerRequired)
	}
	if _, exists := p.byName[d.Name]; exists {
		return fmt.Errorf("%w: %q", errspkg.ErrDuplicateHandlerName, d.Name)
	}
	if len(d.declErrs) > 0 {
		return ambiguous(d.Name, "", errors.Join(d.declErrs...).Error())
	}

	h, err := resolveHandler(comp, d.clone())
	if err != nil {
		return err
	}

	if h.Input != "" {
		if first, taken := p.byInput[h.Input]; taken {
			return &errspkg.DuplicateChannelBindingError{Channel: h.Input, First: first.Name(), Second: d.Name}
		}
		p.byInput[h.Input] = h
		p.bindings = append(p.bindings, Binding{
			Channel:    h.Input,
			Direction:  DirectionIn,
			Handler:    d.Name,
			Component:  comp.Name,
			ParamIndex: h.InputParam,
		})
	}
	for _, t := range h.Outputs {
		p.bindings = append(p.bindings, Binding{
			Channel:    t.Channel,
			Direction:  DirectionOut,
			Handler:    d.Name,
			Component:  comp.Name,
			ParamIndex: t.ParamIndex,
		})
	}
	p.byName[d.Name] = h
	p.handlers = append(p.handlers, h)
	return nil
}

func resolveHandler(comp Component, d *HandlerDescriptor) (*ResolvedHandler, error) {
	h := &ResolvedHandler{
		Descriptor: d,
		Component:  comp.Name,
		Mode:       d.Mode(),
		InputParam: WholeMethod,
	}

	var err error
	if h.Mode == ModeStreaming {
		err = resolveStreamingInput(d, h)
	} else {
		err = resolveUnaryInput(d, h)
	}
	if err != nil {
		return nil, err
	}
	if err := resolveOutputs(d, h); err != nil {
		return nil, err
	}

	if h.Input != "" && !comp.declaresInput(h.Input) {
		return nil, &errspkg.ChannelNotFoundError{Channel: h.Input, Component: comp.Name}
	}
	for _, t := range h.Outputs {
		if !comp.declaresOutput(t.Channel) {
			return nil, &errspkg.ChannelNotFoundError{Channel: t.Channel, Component: comp.Name}
		}
	}
	return h, nil
}

func resolveStreamingInput(d *HandlerDescriptor, h *ResolvedHandler) error {
	if len(d.indexes(RolePayload))+len(d.indexes(RoleRawMessage)) > 0 {
		return ambiguous(d.Name, d.Input, "streaming handlers cannot take payload or message parameters")
	}
	streamIn := d.indexes(RoleStreamInput)
	switch len(streamIn) {
	case 0:
		if d.Input != "" {
			return ambiguous(d.Name, d.Input, "input declared on the method but no stream input parameter consumes it")
		}
		return nil
	case 1:
	default:
		return ambiguous(d.Name, "", "more than one stream input parameter")
	}

	idx := streamIn[0]
	param := d.Params[idx]
	switch {
	case param.Channel != "" && d.Input != "" && param.Channel != d.Input:
		return ambiguous(d.Name, param.Channel,
			fmt.Sprintf("input declared as %q on the method and %q on parameter %d", d.Input, param.Channel, idx))
	case param.Channel == "" && d.Input == "":
		return ambiguous(d.Name, "", fmt.Sprintf("stream input parameter %d has no channel", idx))
	case param.Channel == "" && hasDecoratedOutput(d):
		return ambiguous(d.Name, d.Input,
			"input is declared on the method while outputs are declared on parameters; declare the input on the stream parameter too")
	}

	h.Input = param.Channel
	if h.Input == "" {
		h.Input = d.Input
	}
	h.InputParam = idx
	return nil
}

func hasDecoratedOutput(d *HandlerDescriptor) bool {
	for _, p := range d.Params {
		if p.Role == RoleStreamOutput && p.Channel != "" {
			return true
		}
	}
	return false
}

func resolveUnaryInput(d *HandlerDescriptor, h *ResolvedHandler) error {
	paramChannel, paramIdx := "", WholeMethod
	for i, p := range d.Params {
		if p.Channel == "" {
			continue
		}
		if paramChannel != "" && p.Channel != paramChannel {
			return ambiguous(d.Name, p.Channel,
				fmt.Sprintf("parameters declare different input channels %q and %q", paramChannel, p.Channel))
		}
		if paramChannel == "" {
			paramChannel, paramIdx = p.Channel, i
		}
	}

	switch {
	case paramChannel != "" && d.Input != "" && paramChannel != d.Input:
		return ambiguous(d.Name, paramChannel,
			fmt.Sprintf("input declared as %q on the method and %q on parameter %d", d.Input, paramChannel, paramIdx))
	case paramChannel == "" && d.Input == "":
		return ambiguous(d.Name, "", "no input channel declared")
	}

	h.Input = d.Input
	if h.Input == "" {
		h.Input = paramChannel
	}
	h.InputParam = paramIdx
	return nil
}

func resolveOutputs(d *HandlerDescriptor, h *ResolvedHandler) error {
	seen := map[string]bool{}
	methodOutputClaimed := false

	handles := d.indexes(RoleStreamOutput)
	for _, idx := range handles {
		ch := d.Params[idx].Channel
		if ch == "" {
			if len(handles) != 1 || d.Output == "" {
				return ambiguous(d.Name, "", fmt.Sprintf("output handle parameter %d has no channel", idx))
			}
			ch = d.Output
			methodOutputClaimed = true
		}
		if seen[ch] {
			return ambiguous(d.Name, ch, "output channel bound more than once")
		}
		seen[ch] = true
		h.Outputs = append(h.Outputs, OutputTarget{Kind: TargetHandle, Channel: ch, ParamIndex: idx})
	}

	switch d.Returns {
	case ReturnNone:
		if d.Output != "" && !methodOutputClaimed {
			return ambiguous(d.Name, d.Output, "output declared but the handler neither returns a value nor takes an output handle")
		}
	case ReturnValue, ReturnMessage:
		if h.Mode == ModeStreaming {
			return ambiguous(d.Name, d.Output, "streaming handlers must return a stream or nothing")
		}
		if d.Output == "" {
			return ambiguous(d.Name, "", "handler returns a value but declares no output channel")
		}
		h.Outputs = append(h.Outputs, OutputTarget{Kind: TargetReturnValue, Channel: d.Output, ParamIndex: ReturnIndex})
	case ReturnStream:
		if d.Output == "" || methodOutputClaimed {
			return ambiguous(d.Name, "", "handler returns a stream but declares no output channel for it")
		}
		if seen[d.Output] {
			return ambiguous(d.Name, d.Output, "output channel bound more than once")
		}
		h.Outputs = append(h.Outputs, OutputTarget{Kind: TargetReturnValue, Channel: d.Output, ParamIndex: ReturnIndex})
	}

	if h.Mode == ModeStreaming && h.Input == "" && len(h.Outputs) == 0 {
		return ambiguous(d.Name, "", "streaming handler has neither input nor output")
	}
	return nil
}

func ambiguous(handler, channel, reason string) error {
	return &errspkg.AmbiguousChannelBindingError{Handler: handler, Channel: channel, Reason: reason}
}
