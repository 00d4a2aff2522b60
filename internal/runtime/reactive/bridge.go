package reactive

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
)

// State is the lifecycle position of a Bridge.
type State int32

const (
	StateCreated State = iota
	StateSubscribed
	StateActive
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateActive:
		return "ACTIVE"
	case StateCompleted:
		return "COMPLETED"
	case StateCancelled:
		return "CANCELLED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// SendFunc delivers one element to the bound channel.
type SendFunc func(ctx context.Context, value any) error

// BridgeConfig describes one streaming binding.
type BridgeConfig struct {
	Handler string
	Channel string
	// Prefetch is the demand kept outstanding upstream. Zero or negative
	// requests Unbounded.
	Prefetch int64
	Send     SendFunc
	// OnTransition observes every state change. It runs synchronously on
	// the goroutine causing the change.
	OnTransition func(b *Bridge, from, to State)
}

var errBridgeStarted = errors.New("flowbind: bridge already started")

// Bridge subscribes to a publisher and sends each element on a channel, one
// at a time. Upstream demand is replenished only after a send returns, so a
// slow channel throttles the producer.
type Bridge struct {
	cfg      BridgeConfig
	prefetch int64

	state    atomic.Int32
	started  atomic.Bool
	stopping atomic.Bool
	sent     atomic.Int64

	ctxMu  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	sendMu sync.Mutex

	subMu sync.Mutex
	sub   Subscription

	errMu sync.Mutex
	err   error

	done     chan struct{}
	doneOnce sync.Once
}

// NewBridge creates a bridge in the CREATED state.
func NewBridge(cfg BridgeConfig) *Bridge {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = Unbounded
	}
	return &Bridge{
		cfg:      cfg,
		prefetch: prefetch,
		done:     make(chan struct{}),
	}
}

// Start subscribes to pub. Cancelling ctx cancels the bridge.
func (b *Bridge) Start(ctx context.Context, pub Publisher[any]) error {
	if !b.started.CompareAndSwap(false, true) {
		return errBridgeStarted
	}
	if b.State().Terminal() {
		return errBridgeStarted
	}
	if b.cfg.Send == nil {
		return errspkg.ErrHandlerRequired
	}
	b.ctxMu.Lock()
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.ctxMu.Unlock()
	context.AfterFunc(b.ctx, b.Cancel)
	pub.Subscribe(bridgeSubscriber{b})
	return nil
}

// Cancel stops requesting demand, cancels the upstream subscription and the
// context of an in-flight send, waits for that send to return and moves the
// bridge to CANCELLED. It is a no-op on a terminal bridge. Cancel must not be
// called from inside the SendFunc.
func (b *Bridge) Cancel() {
	if !b.stopping.CompareAndSwap(false, true) {
		return
	}
	b.cancelUpstream()
	if cancel := b.sendCancel(); cancel != nil {
		cancel()
	}

	b.sendMu.Lock()
	b.finish(StateCancelled, nil)
	b.sendMu.Unlock()
}

func (b *Bridge) Handler() string { return b.cfg.Handler }
func (b *Bridge) Channel() string { return b.cfg.Channel }

// Prefetch returns the effective upstream demand.
func (b *Bridge) Prefetch() int64 { return b.prefetch }

func (b *Bridge) State() State { return State(b.state.Load()) }

// Sent returns the number of elements delivered to the channel.
func (b *Bridge) Sent() int64 { return b.sent.Load() }

// Done is closed when the bridge reaches a terminal state.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Err returns the failure of a FAILED bridge, or nil.
func (b *Bridge) Err() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.err
}

func (b *Bridge) transition(from, to State) bool {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	b.notify(from, to)
	return true
}

func (b *Bridge) finish(to State, err error) bool {
	for {
		cur := b.State()
		if cur.Terminal() {
			return false
		}
		if b.state.CompareAndSwap(int32(cur), int32(to)) {
			b.errMu.Lock()
			b.err = err
			b.errMu.Unlock()
			b.doneOnce.Do(func() { close(b.done) })
			if cancel := b.sendCancel(); cancel != nil {
				cancel()
			}
			b.notify(cur, to)
			return true
		}
	}
}

// fail keeps an error that already carries a failure kind and wraps any
// other error with kind.
func (b *Bridge) fail(kind errspkg.FailureKind, err error) {
	var hif *errspkg.HandlerInvocationFailedError
	if errors.As(err, &hif) {
		b.finish(StateFailed, err)
		return
	}
	b.finish(StateFailed, &errspkg.HandlerInvocationFailedError{
		Handler: b.cfg.Handler,
		Channel: b.cfg.Channel,
		Kind:    kind,
		Err:     err,
	})
}

func (b *Bridge) notify(from, to State) {
	if b.cfg.OnTransition != nil {
		b.cfg.OnTransition(b, from, to)
	}
}

func (b *Bridge) sendCancel() context.CancelFunc {
	b.ctxMu.Lock()
	defer b.ctxMu.Unlock()
	return b.cancel
}

func (b *Bridge) upstream() Subscription {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return b.sub
}

func (b *Bridge) cancelUpstream() {
	if s := b.upstream(); s != nil {
		s.Cancel()
	}
}

type bridgeSubscriber struct{ b *Bridge }

func (s bridgeSubscriber) OnSubscribe(sub Subscription) {
	b := s.b
	b.subMu.Lock()
	b.sub = sub
	b.subMu.Unlock()

	if b.stopping.Load() {
		sub.Cancel()
		return
	}
	if b.transition(StateCreated, StateSubscribed) {
		sub.Request(b.prefetch)
	}
}

func (s bridgeSubscriber) OnNext(v any) {
	b := s.b
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	if b.stopping.Load() || b.State().Terminal() {
		return
	}
	b.transition(StateSubscribed, StateActive)

	if err := guard(func() error { return b.cfg.Send(b.ctx, v) }); err != nil {
		if b.stopping.Load() {
			return
		}
		b.fail(errspkg.KindSend, err)
		b.cancelUpstream()
		return
	}
	b.sent.Add(1)
	if b.prefetch != Unbounded {
		if up := b.upstream(); up != nil {
			up.Request(1)
		}
	}
}

func (s bridgeSubscriber) OnError(err error) {
	if s.b.stopping.Load() {
		return
	}
	s.b.fail(errspkg.KindStream, err)
}

func (s bridgeSubscriber) OnComplete() {
	if s.b.stopping.Load() {
		return
	}
	s.b.finish(StateCompleted, nil)
}
