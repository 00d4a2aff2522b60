package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/flowbind/internal/runtime/channels"
	configpkg "github.com/drblury/flowbind/internal/runtime/config"
	"github.com/drblury/flowbind/internal/runtime/converters"
	loggingpkg "github.com/drblury/flowbind/internal/runtime/logging"
)

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

type testPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for range messages {
		p.published = append(p.published, topic)
	}
	return nil
}

func (p *testPublisher) Close() error { return nil }

func (p *testPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]string, len(p.published))
	copy(clone, p.published)
	return clone
}

type testSubscriber struct {
	err error
}

func (s *testSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (s *testSubscriber) Close() error { return nil }

// newTestService builds a Service around stub pub/sub without going through
// a binder.
func newTestService(t *testing.T) *Service {
	t.Helper()
	log := newTestLogger()
	wmLogger := loggingpkg.NewWatermillAdapter(log)
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		t.Fatalf("router init failed: %v", err)
	}
	return &Service{
		Conf:       &configpkg.Config{BinderType: "test"},
		Logger:     log,
		router:     router,
		publisher:  &testPublisher{},
		subscriber: &testSubscriber{},
		channels:   channels.NewRegistry(),
		converters: converters.NewRegistry(),
		registerer: prometheus.NewRegistry(),
		stats:      make(map[string]*HandlerStats),
	}
}

type mockLogger struct{}

func (m mockLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger { return m }
func (m mockLogger) Debug(msg string, fields loggingpkg.LogFields)             {}
func (m mockLogger) Info(msg string, fields loggingpkg.LogFields)              {}
func (m mockLogger) Error(msg string, err error, fields loggingpkg.LogFields)  {}
func (m mockLogger) Trace(msg string, fields loggingpkg.LogFields)             {}

type recordingServiceLogger struct {
	mu     sync.Mutex
	infos  []string
	debugs int
	errors []string
}

func (r *recordingServiceLogger) With(loggingpkg.LogFields) loggingpkg.ServiceLogger { return r }

func (r *recordingServiceLogger) Debug(string, loggingpkg.LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugs++
}

func (r *recordingServiceLogger) Info(msg string, _ loggingpkg.LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func (r *recordingServiceLogger) Error(msg string, _ error, _ loggingpkg.LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recordingServiceLogger) Trace(string, loggingpkg.LogFields) {}

func (r *recordingServiceLogger) debugCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.debugs
}

func (r *recordingServiceLogger) infoMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.infos...)
}

func (r *recordingServiceLogger) errorMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}
