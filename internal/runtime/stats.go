package runtime

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
	"github.com/drblury/flowbind/internal/runtime/jsoncodec"
	"github.com/drblury/flowbind/internal/runtime/reactive"
)

const latencySampleSize = 256

// HandlerStats tracks unary dispatch outcomes for one handler.
type HandlerStats struct {
	mu            sync.Mutex
	data          StatsSnapshot
	latencyWindow *latencyWindow
}

// StatsSnapshot is a point-in-time copy of HandlerStats.
type StatsSnapshot struct {
	MessagesProcessed   uint64           `json:"messages_processed"`
	MessagesFailed      uint64           `json:"messages_failed"`
	TotalProcessingTime int64            `json:"total_processing_time_ns"`
	LastProcessedAt     time.Time        `json:"last_processed_at"`
	Latency             LatencyMetrics   `json:"latency"`
	Failures            FailureBreakdown `json:"failures"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

// FailureBreakdown counts failures by the stage that raised them.
type FailureBreakdown struct {
	Handler    uint64 `json:"handler"`
	Conversion uint64 `json:"conversion"`
	Send       uint64 `json:"send"`
	Other      uint64 `json:"other"`
	LastError  string `json:"last_error,omitempty"`
}

func newHandlerStats() *HandlerStats {
	return &HandlerStats{latencyWindow: newLatencyWindow(latencySampleSize)}
}

func (h *HandlerStats) record(duration time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d := &h.data
	d.MessagesProcessed++
	if err != nil {
		d.MessagesFailed++
		d.Failures.Record(err)
	}
	d.TotalProcessingTime += int64(duration)
	d.LastProcessedAt = time.Now().UTC()

	h.latencyWindow.Add(duration)
	snapshot := h.latencyWindow.Snapshot()
	snapshot.AverageNs = d.TotalProcessingTime / int64(d.MessagesProcessed)
	d.Latency = snapshot
}

// Snapshot returns a copy of the current counters.
func (h *HandlerStats) Snapshot() StatsSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data
}

func (h *HandlerStats) MarshalJSON() ([]byte, error) {
	return jsoncodec.Marshal(h.Snapshot())
}

func (f *FailureBreakdown) Record(err error) {
	kind, _ := errspkg.KindOf(err)
	switch kind {
	case errspkg.KindHandler:
		f.Handler++
	case errspkg.KindConversion:
		f.Conversion++
	case errspkg.KindSend:
		f.Send++
	default:
		f.Other++
	}
	f.LastError = err.Error()
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	metrics := LatencyMetrics{LastNs: lw.last}
	if lw.filled == 0 {
		return metrics
	}
	samples := make([]int64, lw.filled)
	for i := range samples {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	metrics.SampleSize = lw.filled
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	var sum int64
	for _, v := range samples {
		sum += v
	}
	metrics.AverageNs = sum / int64(len(samples))
	return metrics
}

// percentile interpolates linearly between the closest ranks of sorted samples.
func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}

// bridgeMetrics exports stream bridge lifecycle and poison queue traffic to
// Prometheus.
type bridgeMetrics struct {
	transitions *prometheus.CounterVec
	active      *prometheus.GaugeVec
	sent        *prometheus.CounterVec
	poisoned    *prometheus.CounterVec
}

func newBridgeMetrics(reg prometheus.Registerer) (*bridgeMetrics, error) {
	var err error
	m := &bridgeMetrics{}
	if m.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowbind",
		Subsystem: "bridge",
		Name:      "transitions_total",
		Help:      "Stream bridge state transitions by target state.",
	}, []string{"handler", "channel", "state"})); err != nil {
		return nil, err
	}
	if m.active, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "flowbind",
		Subsystem: "bridge",
		Name:      "active",
		Help:      "Stream bridges currently forwarding items.",
	}, []string{"handler", "channel"})); err != nil {
		return nil, err
	}
	if m.sent, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowbind",
		Subsystem: "bridge",
		Name:      "sent_total",
		Help:      "Items forwarded by stream bridges that reached a terminal state.",
	}, []string{"handler", "channel"})); err != nil {
		return nil, err
	}
	if m.poisoned, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowbind",
		Subsystem: "dispatch",
		Name:      "poisoned_total",
		Help:      "Messages forwarded to the poison queue by failure kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	return m, nil
}

// register tolerates collectors registered by an earlier service sharing
// the registerer.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	var zero C
	return zero, err
}

func (m *bridgeMetrics) observe(b *reactive.Bridge, from, to reactive.State) {
	if m == nil {
		return
	}
	handler, channel := b.Handler(), b.Channel()
	m.transitions.WithLabelValues(handler, channel, to.String()).Inc()
	if to == reactive.StateActive {
		m.active.WithLabelValues(handler, channel).Inc()
	}
	if from == reactive.StateActive && to.Terminal() {
		m.active.WithLabelValues(handler, channel).Dec()
	}
	if to.Terminal() {
		m.sent.WithLabelValues(handler, channel).Add(float64(b.Sent()))
	}
}

func (m *bridgeMetrics) poison(err error) {
	if m == nil {
		return
	}
	kind, ok := errspkg.KindOf(err)
	if !ok {
		kind = "other"
	}
	m.poisoned.WithLabelValues(string(kind)).Inc()
}
