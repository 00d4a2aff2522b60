package runtime

import (
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	idspkg "github.com/drblury/flowbind/internal/runtime/ids"
	loggingpkg "github.com/drblury/flowbind/internal/runtime/logging"
	"github.com/drblury/flowbind/internal/runtime/messaging"
)

// MiddlewareBuilder constructs a handler middleware using the provided service instance.
type MiddlewareBuilder func(*Service) (message.HandlerMiddleware, error)

// MiddlewareRegistration captures how a middleware should be registered on a Service router.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

// RetryMiddlewareConfig customises the retry middleware behaviour.
type RetryMiddlewareConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	RetryIf         func(error) bool
}

func (cfg RetryMiddlewareConfig) withDefaults() RetryMiddlewareConfig {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 16 * time.Second
	}
	return cfg
}

// DefaultMiddlewares returns the standard middleware chain used by the
// Service constructor. Dispatch itself never retries; add RetryMiddleware to
// retry inside the process.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		CorrelationIDMiddleware(),
		LogMessagesMiddleware(nil),
		TracerMiddleware(),
		MetricsMiddleware(),
		PoisonQueueMiddleware(nil),
		DropUnconvertibleMiddleware(),
		RecovererMiddleware(),
	}
}

// MetricsMiddleware adds Prometheus router metrics and serves /metrics on
// the configured port.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			if !s.Conf.MetricsEnabled {
				return nil, nil
			}

			metricsBuilder := metrics.NewPrometheusMetricsBuilder(
				s.registerer,
				"flowbind",
				s.Conf.BinderType,
			)

			metricsBuilder.AddPrometheusRouterMetrics(s.router)

			if s.Conf.MetricsPort > 0 {
				s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", promhttp.Handler())
			}

			return metricsBuilder.NewRouterMiddleware().Middleware, nil
		},
	}
}

// CorrelationIDMiddleware ensures each processed message carries a correlation identifier.
func CorrelationIDMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "correlation_id",
		Middleware: func(h message.HandlerFunc) message.HandlerFunc {
			return func(msg *message.Message) ([]*message.Message, error) {
				if msg.Metadata.Get(messaging.HeaderCorrelationID) == "" {
					msg.Metadata.Set(messaging.HeaderCorrelationID, idspkg.MessageID())
				}
				return h(msg)
			}
		},
	}
}

// LogMessagesMiddleware logs the payload and metadata of handled messages at
// Debug. A nil logger uses the service logger.
func LogMessagesMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_messages",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = s.Logger
			}
			if l == nil {
				return nil, errors.New("log messages middleware requires a logger")
			}
			return logMessagesMiddleware(l), nil
		},
	}
}

// TracerMiddleware wraps handler execution in an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "tracer",
		Middleware: tracerMiddleware,
	}
}

// RetryMiddleware retries handler execution using the provided configuration (defaults applied to zero values).
func RetryMiddleware(cfg RetryMiddlewareConfig) MiddlewareRegistration {
	normalized := cfg.withDefaults()
	return MiddlewareRegistration{
		Name: "retry",
		Middleware: middleware.Retry{
			MaxRetries:      normalized.MaxRetries,
			InitialInterval: normalized.InitialInterval,
			MaxInterval:     normalized.MaxInterval,
			ShouldRetry: func(params middleware.RetryParams) bool {
				if normalized.RetryIf != nil {
					return normalized.RetryIf(params.Err)
				}
				return true
			},
		}.Middleware,
	}
}

// PoisonQueueMiddleware publishes messages whose dispatch failed to the
// configured poison queue and acks them. It is a no-op when no poison queue
// is configured. A nil filter matches every HandlerInvocationFailedError.
func PoisonQueueMiddleware(filter func(error) bool) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "poison_queue",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			if s.Conf.PoisonQueue == "" {
				return nil, nil
			}
			if s.publisher == nil {
				return nil, errors.New("publisher is required for poison queue middleware")
			}
			f := filter
			if f == nil {
				f = func(err error) bool {
					return errors.Is(err, errspkg.ErrHandlerInvocationFailed)
				}
			}
			counted := func(err error) bool {
				if !f(err) {
					return false
				}
				s.metrics.poison(err)
				return true
			}
			return middleware.PoisonQueueWithFilter(s.publisher, s.Conf.PoisonQueue, counted)
		},
	}
}

// DropUnconvertibleMiddleware acks messages whose payload could not be
// converted, since redelivery cannot fix them. The failure is still logged
// by dispatch. Skipped when a poison queue is configured.
func DropUnconvertibleMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "drop_unconvertible",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			if s.Conf.PoisonQueue != "" {
				return nil, nil
			}
			return func(h message.HandlerFunc) message.HandlerFunc {
				return func(msg *message.Message) ([]*message.Message, error) {
					msgs, err := h(msg)
					if kind, ok := errspkg.KindOf(err); ok && kind == errspkg.KindConversion {
						s.Logger.Info("Dropping message that cannot be converted", loggingpkg.LogFields{
							"message_uuid": msg.UUID,
							"handler":      message.HandlerNameFromCtx(msg.Context()),
						})
						return nil, nil
					}
					return msgs, err
				}
			}, nil
		},
	}
}

// RecovererMiddleware converts panics into handler errors so they can be retried or sent to the poison queue.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}

// RegisterMiddleware attaches the supplied middleware to the router. It must
// be called before Start.
func (s *Service) RegisterMiddleware(cfg MiddlewareRegistration) error {
	if s.router == nil {
		return errors.New("router is not initialised")
	}

	var mw message.HandlerMiddleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(s)
		if err != nil {
			return err
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}

	if mw == nil {
		return nil
	}

	s.router.AddMiddleware(mw)
	return nil
}

func logMessagesMiddleware(logger loggingpkg.ServiceLogger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			logger.Debug("Processing message", loggingpkg.LogFields{
				"message_uuid": msg.UUID,
				"handler":      message.HandlerNameFromCtx(msg.Context()),
				"payload":      string(msg.Payload),
				"metadata":     msg.Metadata,
			})
			return h(msg)
		}
	}
}

func tracerMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		tracer := otel.Tracer("github.com/drblury/flowbind")
		ctx, span := tracer.Start(msg.Context(), "Dispatch")
		defer span.End()
		msg.SetContext(ctx)

		span.SetAttributes(
			attribute.String("message.uuid", msg.UUID),
			attribute.String("message.handler", message.HandlerNameFromCtx(ctx)),
			attribute.String("message.destination", message.SubscribeTopicFromCtx(ctx)),
			attribute.String("message.content_type", msg.Metadata.Get(messaging.HeaderContentType)),
		)
		msgs, err := h(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return msgs, err
	}
}
