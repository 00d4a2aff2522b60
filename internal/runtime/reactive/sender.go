package reactive

import (
	"sync"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
)

// Sender is an output handle passed to streaming handlers. Handing it a
// publisher starts a bridge that forwards every element to the channel.
type Sender struct {
	channel string
	attach  func(Publisher[any]) error

	mu       sync.Mutex
	attached bool
}

// NewSender returns a Sender for channel. attach is called once with the
// publisher given to Send.
func NewSender(channel string, attach func(Publisher[any]) error) *Sender {
	return &Sender{channel: channel, attach: attach}
}

// Channel returns the output channel the sender is bound to.
func (s *Sender) Channel() string { return s.channel }

// Send attaches p as the sender's source. A sender accepts one source.
func (s *Sender) Send(p Publisher[any]) error {
	s.mu.Lock()
	if s.attached {
		s.mu.Unlock()
		return errspkg.ErrSenderAttached
	}
	s.attached = true
	s.mu.Unlock()
	return s.attach(p)
}

// Attached reports whether a source has been handed to the sender.
func (s *Sender) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// Forward sends a typed publisher through s.
func Forward[T any](s *Sender, p Publisher[T]) error {
	return s.Send(Untyped(p))
}
