package reactive

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
)

// Just emits vs in order and completes.
func Just[T any](vs ...T) Publisher[T] {
	return FromSlice(vs)
}

// FromSlice emits the elements of vs in order and completes.
func FromSlice[T any](vs []T) Publisher[T] {
	items := append([]T(nil), vs...)
	return Generate(func(_ context.Context, emit func(T) error) error {
		for _, v := range items {
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Range emits count consecutive integers starting at start.
func Range(start, count int) Publisher[int] {
	return Generate(func(_ context.Context, emit func(int) error) error {
		for i := 0; i < count; i++ {
			if err := emit(start + i); err != nil {
				return err
			}
		}
		return nil
	})
}

// Interval emits 0, 1, 2, ... every d until cancelled. Ticks that arrive
// while there is no demand are dropped.
func Interval(d time.Duration) Publisher[int64] {
	return Generate(func(ctx context.Context, emit func(int64) error) error {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for n := int64(0); ; n++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			if err := emit(n); err != nil {
				return err
			}
		}
	})
}

// FromChannel emits values received from ch until it is closed.
func FromChannel[T any](ch <-chan T) Publisher[T] {
	return Generate(func(ctx context.Context, emit func(T) error) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-ch:
				if !ok {
					return nil
				}
				if err := emit(v); err != nil {
					return err
				}
			}
		}
	})
}

// Error returns a publisher that fails immediately with err.
func Error[T any](err error) Publisher[T] {
	return Generate(func(context.Context, func(T) error) error { return err })
}

// mapSubscriber applies fn to each element. An error from fn, or a panic in
// it, cancels upstream and fails downstream once.
type mapSubscriber[T, R any] struct {
	down Subscriber[R]
	fn   func(T) (R, error)

	mu   sync.Mutex
	up   Subscription
	done bool
}

func (m *mapSubscriber[T, R]) OnSubscribe(s Subscription) {
	m.mu.Lock()
	m.up = s
	m.mu.Unlock()
	m.down.OnSubscribe(s)
}

func (m *mapSubscriber[T, R]) OnNext(v T) {
	if m.finished() {
		return
	}
	var out R
	err := guard(func() error {
		var err error
		out, err = m.fn(v)
		return err
	})
	if err != nil {
		m.abort(err)
		return
	}
	m.down.OnNext(out)
}

func (m *mapSubscriber[T, R]) OnError(err error) {
	if m.finish() {
		m.down.OnError(err)
	}
}

func (m *mapSubscriber[T, R]) OnComplete() {
	if m.finish() {
		m.down.OnComplete()
	}
}

func (m *mapSubscriber[T, R]) abort(err error) {
	if !m.finish() {
		return
	}
	m.mu.Lock()
	up := m.up
	m.mu.Unlock()
	if up != nil {
		up.Cancel()
	}
	m.down.OnError(err)
}

func (m *mapSubscriber[T, R]) finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

func (m *mapSubscriber[T, R]) finish() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return false
	}
	m.done = true
	return true
}

func mapErr[T, R any](p Publisher[T], fn func(T) (R, error)) Publisher[R] {
	return PublisherFunc[R](func(down Subscriber[R]) {
		p.Subscribe(&mapSubscriber[T, R]{down: down, fn: fn})
	})
}

// Map applies fn to every element. Demand passes through unchanged. A panic
// in fn fails the stream.
func Map[T, R any](p Publisher[T], fn func(T) R) Publisher[R] {
	return mapErr(p, func(v T) (R, error) { return fn(v), nil })
}

// marked carries an element with the filter's verdict on it.
type marked[T any] struct {
	v    T
	keep bool
}

type filterSubscriber[T any] struct {
	down Subscriber[T]

	mu sync.Mutex
	up Subscription
}

func (f *filterSubscriber[T]) OnSubscribe(s Subscription) {
	f.mu.Lock()
	f.up = s
	f.mu.Unlock()
	f.down.OnSubscribe(s)
}

func (f *filterSubscriber[T]) OnNext(m marked[T]) {
	if m.keep {
		f.down.OnNext(m.v)
		return
	}
	f.mu.Lock()
	up := f.up
	f.mu.Unlock()
	up.Request(1)
}

func (f *filterSubscriber[T]) OnError(err error) { f.down.OnError(err) }
func (f *filterSubscriber[T]) OnComplete()       { f.down.OnComplete() }

// Filter drops elements for which keep returns false. Each dropped element
// is replaced by a request for one more so downstream demand stays intact.
// A panic in keep fails the stream.
func Filter[T any](p Publisher[T], keep func(T) bool) Publisher[T] {
	verdicts := mapErr(p, func(v T) (marked[T], error) {
		return marked[T]{v: v, keep: keep(v)}, nil
	})
	return PublisherFunc[T](func(down Subscriber[T]) {
		verdicts.Subscribe(&filterSubscriber[T]{down: down})
	})
}

type takeSubscriber[T any] struct {
	down  Subscriber[T]
	limit int

	mu   sync.Mutex
	up   Subscription
	seen int
	done bool
}

func (t *takeSubscriber[T]) OnSubscribe(s Subscription) {
	t.mu.Lock()
	t.up = s
	t.done = t.limit <= 0
	done := t.done
	t.mu.Unlock()

	t.down.OnSubscribe(s)
	if done {
		s.Cancel()
		t.down.OnComplete()
	}
}

func (t *takeSubscriber[T]) OnNext(v T) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.seen++
	last := t.seen >= t.limit
	t.done = last
	up := t.up
	t.mu.Unlock()

	t.down.OnNext(v)
	if last {
		up.Cancel()
		t.down.OnComplete()
	}
}

func (t *takeSubscriber[T]) OnError(err error) {
	if t.finish() {
		t.down.OnError(err)
	}
}

func (t *takeSubscriber[T]) OnComplete() {
	if t.finish() {
		t.down.OnComplete()
	}
}

func (t *takeSubscriber[T]) finish() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Take emits at most n elements, then cancels upstream and completes.
func Take[T any](p Publisher[T], n int) Publisher[T] {
	return PublisherFunc[T](func(down Subscriber[T]) {
		p.Subscribe(&takeSubscriber[T]{down: down, limit: n})
	})
}

// Untyped erases the element type.
func Untyped[T any](p Publisher[T]) Publisher[any] {
	if u, ok := any(p).(Publisher[any]); ok {
		return u
	}
	return Map(p, func(v T) any { return v })
}

// Typed restores the element type of a publisher produced by Untyped or by
// the dispatcher. An element of another type fails the stream with
// ErrUnexpectedElementType.
func Typed[T any](p Publisher[any]) Publisher[T] {
	if t, ok := any(p).(Publisher[T]); ok {
		return t
	}
	return mapErr(p, func(v any) (T, error) {
		t, ok := v.(T)
		if !ok {
			return t, fmt.Errorf("%w: got %T, want %s", errspkg.ErrUnexpectedElementType, v, reflect.TypeFor[T]())
		}
		return t, nil
	})
}
