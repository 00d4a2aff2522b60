package ids

import (
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageIDSequentialOrdering(t *testing.T) {
	const total = 100
	generated := make([]string, total)
	for i := range generated {
		generated[i] = MessageID()
	}

	for i, id := range generated {
		if len(id) != 26 {
			t.Fatalf("expected ULID length 26, got %d", len(id))
		}
		if _, err := ulid.Parse(id); err != nil {
			t.Fatalf("expected valid ULID at %d, got %v", i, err)
		}
		if i > 0 && generated[i-1] >= id {
			t.Fatalf("expected strictly increasing ids, %s >= %s", generated[i-1], id)
		}
	}
}

func TestMessageIDConcurrentUniqueness(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := MessageID()
				mu.Lock()
				if _, ok := seen[id]; ok {
					t.Errorf("duplicate id generated: %s", id)
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestTimestamp(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	id := NewAt(at).String()

	got, err := Timestamp(id)
	require.NoError(t, err)
	assert.True(t, got.Equal(at), "expected %s, got %s", at, got)

	_, err = Timestamp("not-an-id")
	assert.Error(t, err)
}
