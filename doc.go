// Package flowbind binds application handlers to named message channels on
// top of Watermill. Handlers declare the channels they consume and produce;
// flowbind resolves those declarations into a binding plan, converts payloads
// by content type, and runs each handler either once per inbound message or,
// for stream handlers, once at startup with its streams bridged to channels.
//
// A minimal setup fills Config, creates a Service, registers components and
// calls Start:
//
//	svc := flowbind.NewService(cfg, logger, ctx, flowbind.ServiceDependencies{})
//	upper := flowbind.Listener("upper", func(ctx context.Context, in string) (string, error) {
//		return strings.ToUpper(in), nil
//	}).In(flowbind.InputChannel).Out(flowbind.OutputChannel)
//	_ = svc.RegisterComponent(flowbind.Processor("shouter", upper))
//	_ = svc.Start(ctx)
//
// # Binders
//
// Config.BinderType selects the broker that moves messages. The built-in
// binders are gochannel (in-memory, the default), kafka, rabbitmq, nats,
// http and aws (SNS/SQS, LocalStack friendly). Additional binders register
// through RegisterBinder. Config.Bindings maps each channel to its
// destination, content type, prefetch and static headers.
//
// # Conversion
//
// Payloads are converted by the first converter in the chain that accepts
// the content type and Go type: user converters first, then JSON to tuple,
// JSON to struct, text, gob-serialized values and protobuf.
//
// # Failures
//
// Dispatch never retries. Failures surface as HandlerInvocationFailedError
// carrying a FailureKind and are returned to the binder, which nacks them.
// With Config.PoisonQueue set, failed messages go to the poison queue; without
// one, messages that cannot be converted are acked and logged. Add
// RetryMiddleware to retry in-process.
//
// # Middleware
//
// The default chain adds correlation ids, debug message logging,
// OpenTelemetry spans, Prometheus metrics, poison queue forwarding and panic
// recovery. DispatchHooksMiddleware exposes start, done and error callbacks
// around each dispatch.
package flowbind
