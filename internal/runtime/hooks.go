package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	loggingpkg "github.com/drblury/flowbind/internal/runtime/logging"
	"github.com/drblury/flowbind/internal/runtime/messaging"
)

// DispatchInfo describes one unary dispatch to hooks.
type DispatchInfo struct {
	// Handler is the name of the handler the message was routed to.
	Handler string
	// Destination is the broker topic/queue the message arrived on.
	Destination string
	MessageUUID string
	// CorrelationID is empty when the correlation middleware is disabled.
	CorrelationID string
	Metadata      message.Metadata
	Context       context.Context
	StartedAt     time.Time
	// Duration is only set for OnDone and OnError.
	Duration time.Duration
}

// DispatchHooks observe the unary dispatch lifecycle. Nil hooks are skipped.
type DispatchHooks struct {
	OnStart func(info DispatchInfo)
	OnDone  func(info DispatchInfo)
	// OnError receives the dispatch error, usually a
	// HandlerInvocationFailedError.
	OnError func(info DispatchInfo, err error)
}

// Merge returns hooks calling h first, then other.
func (h DispatchHooks) Merge(other DispatchHooks) DispatchHooks {
	return DispatchHooks{
		OnStart: chainHooks(h.OnStart, other.OnStart),
		OnDone:  chainHooks(h.OnDone, other.OnDone),
		OnError: chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainHooks(a, b func(DispatchInfo)) func(DispatchInfo) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info DispatchInfo) {
		a(info)
		b(info)
	}
}

func chainErrorHooks(a, b func(DispatchInfo, error)) func(DispatchInfo, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info DispatchInfo, err error) {
		a(info, err)
		b(info, err)
	}
}

// DispatchHooksMiddleware invokes hooks around every unary dispatch.
func DispatchHooksMiddleware(hooks DispatchHooks) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "dispatch_hooks",
		Middleware: func(h message.HandlerFunc) message.HandlerFunc {
			return func(msg *message.Message) ([]*message.Message, error) {
				ctx := msg.Context()
				info := DispatchInfo{
					Handler:       message.HandlerNameFromCtx(ctx),
					Destination:   message.SubscribeTopicFromCtx(ctx),
					MessageUUID:   msg.UUID,
					CorrelationID: msg.Metadata.Get(messaging.HeaderCorrelationID),
					Metadata:      msg.Metadata,
					Context:       ctx,
					StartedAt:     time.Now(),
				}
				if hooks.OnStart != nil {
					hooks.OnStart(info)
				}

				msgs, err := h(msg)

				info.Duration = time.Since(info.StartedAt)
				if err != nil {
					if hooks.OnError != nil {
						hooks.OnError(info, err)
					}
				} else if hooks.OnDone != nil {
					hooks.OnDone(info)
				}
				return msgs, err
			}
		},
	}
}

// LoggingHooks logs dispatch completion at Debug and failures at Error.
func LoggingHooks(logger loggingpkg.ServiceLogger) DispatchHooks {
	fields := func(info DispatchInfo) loggingpkg.LogFields {
		return loggingpkg.LogFields{
			"handler":      info.Handler,
			"destination":  info.Destination,
			"message_uuid": info.MessageUUID,
			"duration_ms":  info.Duration.Milliseconds(),
		}
	}
	return DispatchHooks{
		OnDone: func(info DispatchInfo) {
			logger.Debug("Dispatch completed", fields(info))
		},
		OnError: func(info DispatchInfo, err error) {
			f := fields(info)
			if kind, ok := errspkg.KindOf(err); ok {
				f["kind"] = string(kind)
			}
			logger.Error("Dispatch failed", err, f)
		},
	}
}

// AlertingHooks calls alert for every failed dispatch.
func AlertingHooks(alert func(info DispatchInfo, err error)) DispatchHooks {
	return DispatchHooks{OnError: alert}
}
