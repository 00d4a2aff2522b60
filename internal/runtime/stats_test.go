package runtime

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	"github.com/drblury/flowbind/internal/runtime/jsoncodec"
	"github.com/drblury/flowbind/internal/runtime/reactive"
)

func TestHandlerStatsRecord(t *testing.T) {
	stats := newHandlerStats()
	stats.record(10*time.Millisecond, nil)
	stats.record(30*time.Millisecond, &errspkg.HandlerInvocationFailedError{Kind: errspkg.KindSend, Err: errors.New("down")})
	stats.record(20*time.Millisecond, errors.New("plain"))

	snap := stats.Snapshot()
	assert.EqualValues(t, 3, snap.MessagesProcessed)
	assert.EqualValues(t, 2, snap.MessagesFailed)
	assert.Equal(t, int64(60*time.Millisecond), snap.TotalProcessingTime)
	assert.False(t, snap.LastProcessedAt.IsZero())
	assert.EqualValues(t, 1, snap.Failures.Send)
	assert.EqualValues(t, 1, snap.Failures.Other)
	assert.Equal(t, "plain", snap.Failures.LastError)

	assert.Equal(t, 3, snap.Latency.SampleSize)
	assert.Equal(t, int64(20*time.Millisecond), snap.Latency.AverageNs)
	assert.Equal(t, int64(20*time.Millisecond), snap.Latency.P50Ns)
	assert.Equal(t, int64(20*time.Millisecond), snap.Latency.LastNs)
}

func TestHandlerStatsMarshalJSON(t *testing.T) {
	stats := newHandlerStats()
	stats.record(time.Millisecond, nil)

	data, err := jsoncodec.Marshal(stats)
	require.NoError(t, err)

	var snap StatsSnapshot
	require.NoError(t, jsoncodec.Unmarshal(data, &snap))
	assert.EqualValues(t, 1, snap.MessagesProcessed)
}

func TestLatencyWindowWraps(t *testing.T) {
	lw := newLatencyWindow(3)
	for _, d := range []time.Duration{100, 1, 2, 3} {
		lw.Add(d)
	}
	snap := lw.Snapshot()
	assert.Equal(t, 3, snap.SampleSize)
	assert.Equal(t, int64(2), snap.AverageNs)
	assert.Equal(t, int64(3), snap.LastNs)
	assert.Equal(t, int64(2), snap.P50Ns)
}

func TestPercentile(t *testing.T) {
	samples := []int64{10, 20, 30, 40}
	assert.Equal(t, int64(10), percentile(samples, 0))
	assert.Equal(t, int64(40), percentile(samples, 1))
	assert.Equal(t, int64(25), percentile(samples, 0.5))
	assert.Zero(t, percentile(nil, 0.5))
}

func TestBridgeMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := newBridgeMetrics(reg)
	require.NoError(t, err)

	again, err := newBridgeMetrics(reg)
	require.NoError(t, err, "re-registering on a shared registerer")
	assert.Same(t, m.transitions, again.transitions)

	b := reactive.NewBridge(reactive.BridgeConfig{Handler: "letters", Channel: "output"})
	m.observe(b, reactive.StateSubscribed, reactive.StateActive)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.active.WithLabelValues("letters", "output")))

	m.observe(b, reactive.StateActive, reactive.StateCompleted)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.active.WithLabelValues("letters", "output")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("letters", "output", reactive.StateCompleted.String())))

	m.poison(errors.New("unclassified"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.poisoned.WithLabelValues("other")))

	var nilMetrics *bridgeMetrics
	nilMetrics.observe(b, reactive.StateActive, reactive.StateFailed)
	nilMetrics.poison(errors.New("x"))
}
