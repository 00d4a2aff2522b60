package errors

import (
	sterrors "errors"
	"fmt"
	"strings"
)

var (
	ErrServiceRequired       = sterrors.New("flowbind: service is required")
	ErrConfigRequired        = sterrors.New("flowbind: config is required")
	ErrLoggerRequired        = sterrors.New("flowbind: logger is required")
	ErrHandlerRequired       = sterrors.New("flowbind: handler function is required")
	ErrHandlerNameRequired   = sterrors.New("flowbind: handler name is required")
	ErrDuplicateHandlerName  = sterrors.New("flowbind: handler name already registered")
	ErrComponentNameRequired = sterrors.New("flowbind: component name is required")
	ErrChannelRequired       = sterrors.New("flowbind: channel name is required")
	ErrChannelRegistered     = sterrors.New("flowbind: channel already registered")
	ErrAlreadyStarted        = sterrors.New("flowbind: service already started")
	ErrNotStarted            = sterrors.New("flowbind: service not started")
	ErrInvalidDemand         = sterrors.New("flowbind: requested demand must be positive")
	ErrSenderAttached        = sterrors.New("flowbind: output sender already has a source")
	ErrMessageTooLarge       = sterrors.New("flowbind: message exceeds binder size limit")
	ErrPayloadNotBytes       = sterrors.New("flowbind: payload must be converted to bytes before sending")
	ErrUnexpectedElementType = sterrors.New("flowbind: stream element has an unexpected type")

	ErrDuplicateChannelBinding = sterrors.New("flowbind: duplicate channel binding")
	ErrAmbiguousChannelBinding = sterrors.New("flowbind: ambiguous channel binding")
	ErrNoConverterFound        = sterrors.New("flowbind: no converter found")
	ErrHandlerInvocationFailed = sterrors.New("flowbind: handler invocation failed")
	ErrChannelNotFound         = sterrors.New("flowbind: channel not found")
	ErrConfigInvalid           = sterrors.New("flowbind: invalid configuration")
)

// DuplicateChannelBindingError reports two handlers consuming the same input
// channel.
type DuplicateChannelBindingError struct {
	Channel string
	First   string
	Second  string
}

func (e *DuplicateChannelBindingError) Error() string {
	return fmt.Sprintf("flowbind: duplicate channel binding for input %q: handlers %q and %q both consume it",
		e.Channel, e.First, e.Second)
}

func (e *DuplicateChannelBindingError) Is(target error) bool {
	return target == ErrDuplicateChannelBinding
}

// AmbiguousChannelBindingError reports a handler whose channel declarations
// conflict or cannot be resolved.
type AmbiguousChannelBindingError struct {
	Handler string
	Channel string
	Reason  string
}

func (e *AmbiguousChannelBindingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "flowbind: ambiguous channel binding on handler %q", e.Handler)
	if e.Channel != "" {
		fmt.Fprintf(&b, " (channel %q)", e.Channel)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *AmbiguousChannelBindingError) Is(target error) bool {
	return target == ErrAmbiguousChannelBinding
}

// Direction names a conversion direction.
type Direction string

const (
	DirectionReceive Direction = "receive"
	DirectionSend    Direction = "send"
)

// NoConverterFoundError reports that no converter handles a content type and
// Go type pair.
type NoConverterFoundError struct {
	ContentType string
	Type        string
	Direction   Direction
}

func (e *NoConverterFoundError) Error() string {
	return fmt.Sprintf("flowbind: no converter found to %s %s as %q", e.Direction, e.Type, e.ContentType)
}

func (e *NoConverterFoundError) Is(target error) bool {
	return target == ErrNoConverterFound
}

// FailureKind distinguishes the stage at which a dispatch failed.
type FailureKind string

const (
	KindHandler    FailureKind = "handler"
	KindConversion FailureKind = "conversion"
	KindSend       FailureKind = "send"
	KindStream     FailureKind = "stream"
)

// HandlerInvocationFailedError wraps a failure raised while dispatching to a
// handler or while a bridge forwards its stream.
type HandlerInvocationFailedError struct {
	Handler string
	Channel string
	Kind    FailureKind
	Err     error
}

func (e *HandlerInvocationFailedError) Error() string {
	return fmt.Sprintf("flowbind: handler %q failed (%s) on channel %q: %v", e.Handler, e.Kind, e.Channel, e.Err)
}

func (e *HandlerInvocationFailedError) Unwrap() error {
	return e.Err
}

func (e *HandlerInvocationFailedError) Is(target error) bool {
	return target == ErrHandlerInvocationFailed
}

// ChannelNotFoundError reports a channel lookup miss.
type ChannelNotFoundError struct {
	Channel   string
	Component string
}

func (e *ChannelNotFoundError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("flowbind: channel %q not declared by component %q", e.Channel, e.Component)
	}
	return fmt.Sprintf("flowbind: channel %q not found", e.Channel)
}

func (e *ChannelNotFoundError) Is(target error) bool {
	return target == ErrChannelNotFound
}

// ConfigValidationError reports one invalid configuration field.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("flowbind: invalid configuration field %s: %s", e.Field, e.Reason)
}

func (e *ConfigValidationError) Is(target error) bool {
	return target == ErrConfigInvalid
}

// KindOf returns the failure kind of err when it wraps a
// HandlerInvocationFailedError.
func KindOf(err error) (FailureKind, bool) {
	var hif *HandlerInvocationFailedError
	if sterrors.As(err, &hif) {
		return hif.Kind, true
	}
	return "", false
}
