/*
Package runtime hosts the flowbind application context: it resolves the
registered components into a binding plan, wires every channel to the
selected binder and runs unary handlers and stream bridges until stopped.

# Architecture Overview

Unary handlers run as Watermill router handlers, one per input destination.
Stream handlers run as reactive bridges that pull from a subscription with
bounded demand and push each element to the output channel. The router and
the bridges share one middleware chain and one logger.

# Package Structure

## Core Service (service.go)

The Service struct is the central orchestrator that wires together:
  - Binder publisher and subscriber (see the binder packages)
  - Channel and converter registries scoped to this service
  - Message router and middleware chain
  - Stream bridges and their lifecycle
  - HTTP servers for metrics and the web UI

## Middleware (middleware.go, hooks.go)

  - CorrelationID: stamps a correlation id on every message
  - LogMessages: debug logging of payloads
  - Tracer: OpenTelemetry spans around dispatch
  - Metrics: Prometheus router metrics
  - PoisonQueue: forwards failed messages when a poison queue is configured
  - DropUnconvertible: acks messages no converter can read
  - Retry: opt-in exponential backoff
  - Recoverer: panic recovery
  - DispatchHooks: before/after/error callbacks

## Stats & Monitoring (stats.go, webui.go)

Per-handler counters, latency percentiles and a failure breakdown by kind,
plus Prometheus bridge metrics. The web UI exposes the plan and bridge
states at /api/bindings.

# Sub-packages

  - binding/: components, handler descriptors and plan resolution
  - channels/: channel handles and the channel registry
  - config/: configuration loading and validation
  - converters/: content-type driven payload conversion
  - dispatch/: unary invocation and stream bridge launching
  - errors/: sentinel errors and typed failures
  - handlers/: typed handler builders
  - ids/: ULID generation for message ids
  - jsoncodec/: JSON encoding
  - logging/: logger interface and adapters
  - messaging/: message envelope and headers
  - reactive/: demand-driven publishers and bridges

# Usage Example

	cfg := &config.Config{BinderType: "gochannel"}
	svc := runtime.NewService(cfg, logger, ctx, runtime.ServiceDependencies{})

	_ = svc.RegisterComponent(binding.Processor("upper",
		handlers.Listener("upper", strings.ToUpper)))

	go svc.Start(ctx)
	<-svc.Running()
	_ = svc.Send(ctx, "input", "hello", nil)
*/
package runtime
