package flowbind

import (
	"context"
	"time"

	"github.com/drblury/flowbind/binder"
	runtimepkg "github.com/drblury/flowbind/internal/runtime"
	"github.com/drblury/flowbind/internal/runtime/binding"
	"github.com/drblury/flowbind/internal/runtime/channels"
	configpkg "github.com/drblury/flowbind/internal/runtime/config"
	"github.com/drblury/flowbind/internal/runtime/converters"
	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	handlerpkg "github.com/drblury/flowbind/internal/runtime/handlers"
	idspkg "github.com/drblury/flowbind/internal/runtime/ids"
	jsoncodec "github.com/drblury/flowbind/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/flowbind/internal/runtime/logging"
	"github.com/drblury/flowbind/internal/runtime/messaging"
	"github.com/drblury/flowbind/internal/runtime/reactive"
)

type (
	Config              = configpkg.Config
	BindingProperties   = configpkg.BindingProperties
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	Component         = binding.Component
	HandlerDescriptor = binding.HandlerDescriptor
	Plan              = binding.Plan
	Binding           = binding.Binding
	ResolvedHandler   = binding.ResolvedHandler
	Mode              = binding.Mode
	Direction         = binding.Direction

	Message        = messaging.Message
	Headers        = messaging.Headers
	Tuple          = messaging.Tuple
	MessageContext = handlerpkg.MessageContext

	ChannelHandle   = channels.Handle
	ChannelRegistry = channels.Registry
	DirectChannel   = channels.Direct
	SubscribeFunc   = channels.SubscribeFunc

	Converter         = converters.Converter
	ConverterRegistry = converters.Registry
	MimeType          = converters.MimeType

	Publisher[T any]  = reactive.Publisher[T]
	Subscriber[T any] = reactive.Subscriber[T]
	Subscription      = reactive.Subscription
	Sender            = reactive.Sender
	Bridge            = reactive.Bridge
	BridgeState       = reactive.State

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	DispatchInfo  = runtimepkg.DispatchInfo
	DispatchHooks = runtimepkg.DispatchHooks

	HandlerStats  = runtimepkg.HandlerStats
	StatsSnapshot = runtimepkg.StatsSnapshot
	BindingsView  = runtimepkg.BindingsView

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	BinderBuilder      = binder.Builder
	BinderConfig       = binder.Config
	BinderRegistry     = binder.Registry
	BinderCapabilities = binder.Capabilities

	FailureKind                  = errspkg.FailureKind
	DuplicateChannelBindingError = errspkg.DuplicateChannelBindingError
	AmbiguousChannelBindingError = errspkg.AmbiguousChannelBindingError
	NoConverterFoundError        = errspkg.NoConverterFoundError
	HandlerInvocationFailedError = errspkg.HandlerInvocationFailedError
	ChannelNotFoundError         = errspkg.ChannelNotFoundError
	ConfigValidationError        = errspkg.ConfigValidationError
)

const (
	InputChannel  = binding.InputChannel
	OutputChannel = binding.OutputChannel

	ModeUnary     = binding.ModeUnary
	ModeStreaming = binding.ModeStreaming

	HeaderContentType   = messaging.HeaderContentType
	HeaderDestination   = messaging.HeaderDestination
	HeaderCorrelationID = messaging.HeaderCorrelationID

	ContentTypeJSON         = converters.ContentTypeJSON
	ContentTypeText         = converters.ContentTypeText
	ContentTypeOctetStream  = converters.ContentTypeOctetStream
	ContentTypeGoSerialized = converters.ContentTypeGoSerialized
	ContentTypeProtobuf     = converters.ContentTypeProtobuf

	StateCreated    = reactive.StateCreated
	StateSubscribed = reactive.StateSubscribed
	StateActive     = reactive.StateActive
	StateCompleted  = reactive.StateCompleted
	StateCancelled  = reactive.StateCancelled
	StateFailed     = reactive.StateFailed

	PriorityUser    = converters.PriorityUser
	PriorityDefault = converters.PriorityDefault

	KindHandler    = errspkg.KindHandler
	KindConversion = errspkg.KindConversion
	KindSend       = errspkg.KindSend
	KindStream     = errspkg.KindStream
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	ValidateConfig = configpkg.ValidateConfig
	LoadConfig     = configpkg.Load
	LoadConfigFile = configpkg.LoadFile

	Source    = binding.Source
	Sink      = binding.Sink
	Processor = binding.Processor
	Resolve   = binding.Resolve

	MessageConsumer = handlerpkg.MessageConsumer
	EmitterTo       = handlerpkg.EmitterTo
	FanOut          = handlerpkg.FanOut
	FromContext     = handlerpkg.FromContext

	NewMessage = messaging.New
	NewHeaders = messaging.NewHeaders
	NewTuple   = messaging.NewTuple

	NewChannelRegistry   = channels.NewRegistry
	NewDirectChannel     = channels.NewDirect
	NewConverterRegistry = converters.NewRegistry
	ParseMimeType        = converters.ParseMimeType

	Range    = reactive.Range
	Interval = reactive.Interval

	DefaultMiddlewares          = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware     = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware       = runtimepkg.LogMessagesMiddleware
	TracerMiddleware            = runtimepkg.TracerMiddleware
	MetricsMiddleware           = runtimepkg.MetricsMiddleware
	RetryMiddleware             = runtimepkg.RetryMiddleware
	PoisonQueueMiddleware       = runtimepkg.PoisonQueueMiddleware
	DropUnconvertibleMiddleware = runtimepkg.DropUnconvertibleMiddleware
	RecovererMiddleware         = runtimepkg.RecovererMiddleware

	DispatchHooksMiddleware = runtimepkg.DispatchHooksMiddleware
	LoggingHooks            = runtimepkg.LoggingHooks
	AlertingHooks           = runtimepkg.AlertingHooks

	RegisterBinder  = binder.RegisterWithCapabilities
	BinderNames     = binder.Names
	GetCapabilities = binder.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	KindOf = errspkg.KindOf

	ErrServiceRequired         = errspkg.ErrServiceRequired
	ErrConfigRequired          = errspkg.ErrConfigRequired
	ErrLoggerRequired          = errspkg.ErrLoggerRequired
	ErrHandlerRequired         = errspkg.ErrHandlerRequired
	ErrHandlerNameRequired     = errspkg.ErrHandlerNameRequired
	ErrComponentNameRequired   = errspkg.ErrComponentNameRequired
	ErrAlreadyStarted          = errspkg.ErrAlreadyStarted
	ErrNotStarted              = errspkg.ErrNotStarted
	ErrDuplicateChannelBinding = errspkg.ErrDuplicateChannelBinding
	ErrAmbiguousChannelBinding = errspkg.ErrAmbiguousChannelBinding
	ErrNoConverterFound        = errspkg.ErrNoConverterFound
	ErrHandlerInvocationFailed = errspkg.ErrHandlerInvocationFailed
	ErrChannelNotFound         = errspkg.ErrChannelNotFound
	ErrConfigInvalid           = errspkg.ErrConfigInvalid
	ErrMessageTooLarge         = errspkg.ErrMessageTooLarge

	NewSlogServiceLogger    = loggingpkg.NewSlogServiceLogger
	NewZerologServiceLogger = loggingpkg.NewZerologServiceLogger
	NewCharmServiceLogger   = loggingpkg.NewCharmServiceLogger

	NewMessageID = idspkg.MessageID
)

// Listener builds a unary handler that converts the inbound payload to T and
// sends its result on the output channel.
func Listener[T, R any](name string, fn func(ctx context.Context, in T) (R, error)) *HandlerDescriptor {
	return handlerpkg.Listener(name, fn)
}

// Consumer builds a unary handler that produces nothing.
func Consumer[T any](name string, fn func(ctx context.Context, in T) error) *HandlerDescriptor {
	return handlerpkg.Consumer(name, fn)
}

func MessageListener[R any](name string, fn func(ctx context.Context, msg Message) (R, error)) *HandlerDescriptor {
	return handlerpkg.MessageListener(name, fn)
}

func MessageReturning[T any](name string, fn func(ctx context.Context, in T) (Message, error)) *HandlerDescriptor {
	return handlerpkg.MessageReturning(name, fn)
}

// Emitter builds a producer invoked once at startup.
func Emitter[T any](name string, fn func(ctx context.Context) (Publisher[T], error)) *HandlerDescriptor {
	return handlerpkg.Emitter(name, fn)
}

func StreamTransform[T, R any](name string, fn func(ctx context.Context, in Publisher[T]) (Publisher[R], error)) *HandlerDescriptor {
	return handlerpkg.StreamTransform(name, fn)
}

func StreamTransformTo[T any](name string, fn func(ctx context.Context, in Publisher[T], out *Sender) error) *HandlerDescriptor {
	return handlerpkg.StreamTransformTo(name, fn)
}

func StreamConsumer[T any](name string, fn func(ctx context.Context, in Publisher[T]) error) *HandlerDescriptor {
	return handlerpkg.StreamConsumer(name, fn)
}

// NewFuncConverter builds a converter for T from encode/decode functions.
func NewFuncConverter[T any](name, mediaRange string, decode func([]byte) (T, error), encode func(T) ([]byte, error)) (Converter, error) {
	return converters.NewFuncConverter(name, mediaRange, decode, encode)
}

func Just[T any](vs ...T) Publisher[T] { return reactive.Just(vs...) }

func FromSlice[T any](vs []T) Publisher[T] { return reactive.FromSlice(vs) }

func FromChannel[T any](ch <-chan T) Publisher[T] { return reactive.FromChannel(ch) }

func Generate[T any](fn func(ctx context.Context, emit func(T) error) error) Publisher[T] {
	return reactive.Generate(fn)
}

func Map[T, R any](p Publisher[T], fn func(T) R) Publisher[R] { return reactive.Map(p, fn) }

func Filter[T any](p Publisher[T], keep func(T) bool) Publisher[T] { return reactive.Filter(p, keep) }

func Take[T any](p Publisher[T], n int) Publisher[T] { return reactive.Take(p, n) }

func Collect[T any](ctx context.Context, p Publisher[T]) ([]T, error) { return reactive.Collect(ctx, p) }

// Forward attaches a typed stream to an output handle.
func Forward[T any](s *Sender, p Publisher[T]) error { return reactive.Forward(s, p) }

// MessageTimestamp returns the creation time encoded in an id from
// NewMessageID.
func MessageTimestamp(id string) (time.Time, error) { return idspkg.Timestamp(id) }
