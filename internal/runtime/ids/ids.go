// Package ids generates the identifiers stamped on outbound messages.
package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a monotonic ULID for the current instant.
func New() ulid.ULID {
	return NewAt(time.Now())
}

// NewAt returns a monotonic ULID for t. Ids created within the same
// millisecond keep increasing so they sort in creation order.
func NewAt(t time.Time) ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy)
}

// MessageID returns a 26-character ULID used for message UUIDs and
// correlation identifiers.
func MessageID() string {
	return New().String()
}

// Timestamp extracts the creation time encoded in an id produced by MessageID.
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse message id %q: %w", id, err)
	}
	return ulid.Time(parsed.Time()), nil
}
