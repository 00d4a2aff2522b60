// Package reactive implements a small demand-driven publish/subscribe
// contract and the bridge that forwards a publisher onto a channel.
package reactive

import (
	"context"
	"fmt"
	"math"
	"sync"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
)

// Unbounded demand lets a publisher emit without waiting for requests.
const Unbounded int64 = math.MaxInt64

// Subscription links one subscriber to one publisher.
type Subscription interface {
	// Request adds n to the outstanding demand. A non-positive n cancels
	// the subscription and signals ErrInvalidDemand.
	Request(n int64)
	// Cancel stops the publisher. No terminal signal follows a cancel.
	Cancel()
}

// Subscriber receives signals from a Publisher. Signals are never delivered
// concurrently: OnSubscribe first, then OnNext at most as often as requested,
// then at most one of OnError or OnComplete.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnNext(v T)
	OnError(err error)
	OnComplete()
}

// Publisher is a possibly unbounded sequence of values.
type Publisher[T any] interface {
	Subscribe(s Subscriber[T])
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc[T any] func(s Subscriber[T])

func (f PublisherFunc[T]) Subscribe(s Subscriber[T]) { f(s) }

// Generate returns a cold publisher. Every subscription runs fn on its own
// goroutine; emit blocks until the subscriber has demand and fails once the
// subscription is cancelled. fn must call emit sequentially. A nil return
// completes the stream and an error fails it.
func Generate[T any](fn func(ctx context.Context, emit func(T) error) error) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		ctx, cancel := context.WithCancel(context.Background())
		ds := &demandSubscription[T]{
			sub:    sub,
			ctx:    ctx,
			cancel: cancel,
			wake:   make(chan struct{}, 1),
		}
		sub.OnSubscribe(ds)
		go ds.run(fn)
	})
}

type demandSubscription[T any] struct {
	sub    Subscriber[T]
	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}

	mu        sync.Mutex
	demand    int64
	cancelled bool
	invalid   bool
	closed    bool
}

func (s *demandSubscription[T]) Request(n int64) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	if n <= 0 {
		s.invalid = true
		s.mu.Unlock()
		s.Cancel()
		return
	}
	if s.demand > Unbounded-n {
		s.demand = Unbounded
	} else {
		s.demand += n
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *demandSubscription[T]) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	s.cancel()
}

func (s *demandSubscription[T]) acquire() error {
	for {
		s.mu.Lock()
		if s.cancelled || s.closed {
			s.mu.Unlock()
			return context.Canceled
		}
		if s.demand > 0 {
			if s.demand != Unbounded {
				s.demand--
			}
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
}

func (s *demandSubscription[T]) emit(v T) error {
	if err := s.acquire(); err != nil {
		return err
	}
	s.sub.OnNext(v)
	return nil
}

func (s *demandSubscription[T]) run(fn func(ctx context.Context, emit func(T) error) error) {
	defer s.cancel()
	err := guard(func() error { return fn(s.ctx, s.emit) })

	s.mu.Lock()
	s.closed = true
	invalid, cancelled := s.invalid, s.cancelled
	s.mu.Unlock()

	switch {
	case invalid:
		s.sub.OnError(errspkg.ErrInvalidDemand)
	case cancelled:
	case err != nil:
		s.sub.OnError(err)
	default:
		s.sub.OnComplete()
	}
}

// guard runs fn and turns a panic into an error, so a failing producer or
// operator callback ends its stream instead of the process.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Funcs is a Subscriber assembled from optional callbacks. When Subscribe is
// nil the subscriber requests Demand items up front, or Unbounded when
// Demand is zero.
type Funcs[T any] struct {
	Subscribe func(s Subscription)
	Next      func(v T)
	Error     func(err error)
	Complete  func()
	Demand    int64
}

func (f Funcs[T]) OnSubscribe(s Subscription) {
	if f.Subscribe != nil {
		f.Subscribe(s)
		return
	}
	demand := f.Demand
	if demand == 0 {
		demand = Unbounded
	}
	s.Request(demand)
}

func (f Funcs[T]) OnNext(v T) {
	if f.Next != nil {
		f.Next(v)
	}
}

func (f Funcs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f Funcs[T]) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

// Collect drains p with unbounded demand. It returns early with ctx's error
// when ctx ends first, cancelling the subscription.
func Collect[T any](ctx context.Context, p Publisher[T]) ([]T, error) {
	var (
		mu    sync.Mutex
		items []T
		sub   Subscription
		done  = make(chan error, 1)
	)
	p.Subscribe(Funcs[T]{
		Subscribe: func(s Subscription) {
			mu.Lock()
			sub = s
			mu.Unlock()
			s.Request(Unbounded)
		},
		Next: func(v T) {
			mu.Lock()
			items = append(items, v)
			mu.Unlock()
		},
		Error:    func(err error) { done <- err },
		Complete: func() { done <- nil },
	})

	select {
	case err := <-done:
		mu.Lock()
		defer mu.Unlock()
		return items, err
	case <-ctx.Done():
		mu.Lock()
		s := sub
		out := append([]T(nil), items...)
		mu.Unlock()
		if s != nil {
			s.Cancel()
		}
		return out, ctx.Err()
	}
}
