package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/flowbind/binder"
	_ "github.com/drblury/flowbind/binder/binders" // register the built-in binders
	"github.com/drblury/flowbind/internal/runtime/binding"
	"github.com/drblury/flowbind/internal/runtime/channels"
	configpkg "github.com/drblury/flowbind/internal/runtime/config"
	"github.com/drblury/flowbind/internal/runtime/converters"
	"github.com/drblury/flowbind/internal/runtime/dispatch"
	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	loggingpkg "github.com/drblury/flowbind/internal/runtime/logging"
	"github.com/drblury/flowbind/internal/runtime/messaging"
	"github.com/drblury/flowbind/internal/runtime/reactive"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to use the defaults.
type ServiceDependencies struct {
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	// Binders resolves Config.BinderType. Defaults to binder.DefaultRegistry.
	Binders *binder.Registry
	// Registerer receives router and bridge metrics. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// OnBridgeTransition observes every stream bridge state change.
	OnBridgeTransition func(b *reactive.Bridge, from, to reactive.State)
	// DisableSignalHandler keeps the router from closing on SIGINT/SIGTERM.
	DisableSignalHandler bool
}

// Service is the application context: it owns the channel and converter
// registries, resolves registered components into a binding plan, and runs
// unary dispatch on a Watermill router and streaming handlers as bridges.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	binder       binder.Binder
	capabilities binder.Capabilities
	publisher    message.Publisher
	subscriber   message.Subscriber
	router       *message.Router

	channels   *channels.Registry
	converters *converters.Registry

	registerer prometheus.Registerer
	metrics    *bridgeMetrics
	onBridge   func(*reactive.Bridge, reactive.State, reactive.State)

	mu         sync.RWMutex
	components []binding.Component
	plan       *binding.Plan
	invoker    *dispatch.Invoker
	started    bool
	cancel     context.CancelFunc
	stats      map[string]*HandlerStats

	customInputs []customInput

	httpServers   map[int]*http.ServeMux
	servers       []*http.Server
	httpServersMu sync.Mutex
}

// NewService constructs a Service for the supplied configuration and panics
// when the binder or middleware chain cannot be built. Register components on
// the returned Service before calling Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService is NewService returning construction errors.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if conf.BinderType == "" {
		conf.BinderType = "gochannel"
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errspkg.ErrConfigInvalid, err)
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating binding service", loggingpkg.LogFields{
		"binder": conf.BinderType,
		"config": conf,
	})

	binders := deps.Binders
	if binders == nil {
		binders = binder.DefaultRegistry
	}
	b, err := binders.Build(ctx, conf, wmLogger)
	if err != nil {
		return nil, err
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if !deps.DisableSignalHandler {
		router.AddPlugin(plugin.SignalsHandler)
	}

	s := &Service{
		Conf:         conf,
		Logger:       log,
		binder:       b,
		capabilities: binders.GetCapabilities(conf.BinderType),
		publisher:    b.Publisher,
		subscriber:   b.Subscriber,
		router:       router,
		channels:     channels.NewRegistry(),
		converters:   converters.NewRegistry(),
		registerer:   deps.Registerer,
		onBridge:     deps.OnBridgeTransition,
		stats:        make(map[string]*HandlerStats),
	}
	if cp, ok := b.Publisher.(binder.CapabilitiesProvider); ok {
		s.capabilities = cp.Capabilities()
	}
	if s.registerer == nil {
		s.registerer = prometheus.DefaultRegisterer
	}
	if conf.MetricsEnabled {
		if s.metrics, err = newBridgeMetrics(s.registerer); err != nil {
			_ = b.Close()
			return nil, err
		}
	}

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		_ = b.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

// RegisterComponent adds a component whose handlers are resolved on Start.
func (s *Service) RegisterComponent(c binding.Component) error {
	if c.Name == "" {
		return errspkg.ErrComponentNameRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errspkg.ErrAlreadyStarted
	}
	s.components = append(s.components, c)
	return nil
}

// RegisterConverter adds a user converter. User converters are consulted
// before the built-in chain, in registration order.
func (s *Service) RegisterConverter(c converters.Converter) {
	s.converters.Register(c, converters.PriorityUser)
}

// RegisterChannel installs a custom handle for a channel instead of the one
// the binder would create.
func (s *Service) RegisterChannel(name string, h channels.Handle) error {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if started {
		return errspkg.ErrAlreadyStarted
	}
	return s.channels.Register(name, h)
}

// Start resolves the registered components, wires every channel and runs
// until ctx is cancelled or Stop is called. Resolution errors are returned
// before anything is subscribed.
func (s *Service) Start(ctx context.Context) error {
	inv, err := s.prepare()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.StartWebUIServer()
	s.startHTTPServers()

	launchErr := make(chan error, 1)
	go func() {
		select {
		case <-s.router.Running():
		case <-runCtx.Done():
			return
		}
		if r, ok := s.subscriber.(binder.Runner); ok {
			go func() {
				if err := r.Run(runCtx); err != nil {
					s.Logger.Error("Binder stopped", err, nil)
				}
			}()
		}
		// Streams start once the router has subscribed, so in-process
		// consumers see the first emitted items.
		err := errors.Join(s.subscribeCustomInputs(runCtx, inv), s.launchStreams(runCtx, inv))
		if err != nil {
			launchErr <- err
			cancel()
		}
	}()

	err = routerRun(s.router, runCtx)
	cancel()
	inv.CancelAll()
	select {
	case lerr := <-launchErr:
		return lerr
	default:
	}
	return err
}

func (s *Service) prepare() (*dispatch.Invoker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, errspkg.ErrAlreadyStarted
	}

	plan, err := binding.Resolve(s.components...)
	if err != nil {
		return nil, err
	}

	for _, name := range unionSorted(plan.AllChannels(), s.Conf.Channels()) {
		if _, err := s.channels.Lookup(name); err == nil {
			continue
		}
		props := s.Conf.Binding(name)
		h := channels.NewWatermillHandle(name, props.Destination, s.publisher, s.subscriber,
			channels.WithMaxMessageSize(int64(s.capabilities.MaxMessageSize)))
		if err := s.channels.Register(name, h); err != nil {
			return nil, err
		}
	}

	inv := dispatch.NewInvoker(plan, s.channels, s.converters, s.Conf, dispatch.Options{
		Logger:       s.Logger,
		OnTransition: s.observeBridge,
	})

	for _, h := range plan.Handlers() {
		if h.Mode != binding.ModeUnary {
			continue
		}
		if err := s.addDispatchHandler(inv, h); err != nil {
			return nil, err
		}
	}

	s.plan = plan
	s.invoker = inv
	s.started = true
	s.Logger.Info("Resolved bindings", loggingpkg.LogFields{
		"handlers": len(plan.Handlers()),
		"channels": plan.AllChannels(),
	})
	return inv, nil
}

func (s *Service) addDispatchHandler(inv *dispatch.Invoker, h *binding.ResolvedHandler) error {
	handle, err := s.channels.Lookup(h.Input)
	if err != nil {
		return err
	}
	wh, ok := handle.(*channels.WatermillHandle)
	stats := newHandlerStats()
	s.stats[h.Name()] = stats
	if !ok {
		// Custom handles deliver through their own subscription once running.
		s.customInputs = append(s.customInputs, customInput{handler: h, handle: handle, stats: stats})
		return nil
	}
	name, channel := h.Name(), h.Input

	s.router.AddNoPublisherHandler(name, wh.Destination(), wh.Subscriber(), func(msg *message.Message) error {
		start := time.Now()
		err := inv.Dispatch(msg.Context(), channel, messaging.FromWatermill(msg))
		stats.record(time.Since(start), err)
		if err != nil {
			s.logDispatchFailure(name, channel, msg.UUID, err)
		}
		return err
	})
	return nil
}

type customInput struct {
	handler *binding.ResolvedHandler
	handle  channels.Handle
	stats   *HandlerStats
}

func (s *Service) subscribeCustomInputs(ctx context.Context, inv *dispatch.Invoker) error {
	var errs []error
	for _, in := range s.customInputs {
		name, channel, stats := in.handler.Name(), in.handler.Input, in.stats
		err := in.handle.Subscribe(ctx, func(ctx context.Context, msg messaging.Message) error {
			start := time.Now()
			err := inv.Dispatch(ctx, channel, msg)
			stats.record(time.Since(start), err)
			if err != nil {
				s.logDispatchFailure(name, channel, msg.Header(messaging.HeaderCorrelationID), err)
			}
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) logDispatchFailure(handler, channel, ref string, err error) {
	fields := loggingpkg.LogFields{
		"handler": handler,
		"channel": channel,
		"message": ref,
	}
	if kind, ok := errspkg.KindOf(err); ok {
		fields["kind"] = string(kind)
	}
	s.Logger.Error("Dispatch failed", err, fields)
}

// launchStreams starts stream consumers before pure producers so items sent
// on a shared channel find a subscriber.
func (s *Service) launchStreams(ctx context.Context, inv *dispatch.Invoker) error {
	var consumers, producers []*binding.ResolvedHandler
	for _, h := range inv.Plan().Handlers() {
		switch {
		case h.Mode != binding.ModeStreaming:
		case h.Input != "":
			consumers = append(consumers, h)
		default:
			producers = append(producers, h)
		}
	}

	var errs []error
	for _, h := range append(consumers, producers...) {
		if err := inv.Launch(ctx, h); err != nil {
			s.Logger.Error("Launching stream handler failed", err, loggingpkg.LogFields{"handler": h.Name()})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) observeBridge(b *reactive.Bridge, from, to reactive.State) {
	s.metrics.observe(b, from, to)
	if s.onBridge != nil {
		s.onBridge(b, from, to)
	}
}

// Stop cancels every bridge, closes the router, the binder and the HTTP
// servers. It is safe to call more than once.
func (s *Service) Stop() error {
	s.mu.RLock()
	inv, cancel := s.invoker, s.cancel
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if inv != nil {
		inv.CancelAll()
	}

	var errs []error
	if err := s.router.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.binder.Close(); err != nil {
		errs = append(errs, err)
	}
	s.stopHTTPServers()
	return errors.Join(errs...)
}

// Running is closed once the router has subscribed every unary binding.
func (s *Service) Running() <-chan struct{} {
	return s.router.Running()
}

// Plan returns the resolved binding plan, or nil before Start.
func (s *Service) Plan() *binding.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan
}

// Bridges returns the stream bridges started so far.
func (s *Service) Bridges() []*reactive.Bridge {
	s.mu.RLock()
	inv := s.invoker
	s.mu.RUnlock()
	if inv == nil {
		return nil
	}
	return inv.Bridges()
}

// Channel returns the handle registered for name.
func (s *Service) Channel(name string) (channels.Handle, error) {
	return s.channels.Lookup(name)
}

// Channels exposes the service's channel registry.
func (s *Service) Channels() *channels.Registry { return s.channels }

// Converters exposes the service's converter registry.
func (s *Service) Converters() *converters.Registry { return s.converters }

// Capabilities reports what the configured binder supports.
func (s *Service) Capabilities() binder.Capabilities { return s.capabilities }

// Stats returns dispatch statistics for a unary handler.
func (s *Service) Stats(handler string) (StatsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[handler]
	if !ok {
		return StatsSnapshot{}, false
	}
	return st.Snapshot(), true
}

// Send converts payload and sends it on a bound channel, applying the
// channel's configured content type, headers and destination.
func (s *Service) Send(ctx context.Context, channel string, payload any, headers messaging.Headers) error {
	if s == nil {
		return errspkg.ErrServiceRequired
	}
	s.mu.RLock()
	inv := s.invoker
	s.mu.RUnlock()
	if inv == nil {
		return errspkg.ErrNotStarted
	}
	if m, ok := payload.(messaging.Message); ok {
		return inv.Send(ctx, "", channel, m.WithHeaders(headers), nil)
	}
	return inv.Send(ctx, "", channel, messaging.New(payload, headers), nil)
}

// RegisterHTTPHandler mounts handler on the server for port. Servers start
// with the service.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.servers = append(s.servers, srv)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
	}
}

func (s *Service) stopHTTPServers() {
	s.httpServersMu.Lock()
	servers := s.servers
	s.servers = nil
	s.httpServersMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(ctx)
	}
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
