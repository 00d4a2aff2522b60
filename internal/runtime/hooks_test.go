package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
)

func runHooked(t *testing.T, hooks DispatchHooks, handlerErr error) {
	t.Helper()
	handler := DispatchHooksMiddleware(hooks).Middleware(func(msg *message.Message) ([]*message.Message, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, handlerErr
	})

	msg := message.NewMessage("test-uuid", []byte("payload"))
	msg.Metadata.Set("correlation_id", "corr-1")
	msg.SetContext(context.Background())

	_, err := handler(msg)
	assert.Equal(t, handlerErr, err)
}

func TestDispatchHooks_OnStartAndDone(t *testing.T) {
	var started, done DispatchInfo
	var errCalled bool

	runHooked(t, DispatchHooks{
		OnStart: func(info DispatchInfo) { started = info },
		OnDone:  func(info DispatchInfo) { done = info },
		OnError: func(DispatchInfo, error) { errCalled = true },
	}, nil)

	assert.Equal(t, "test-uuid", started.MessageUUID)
	assert.Equal(t, "corr-1", started.CorrelationID)
	assert.False(t, started.StartedAt.IsZero())
	assert.Zero(t, started.Duration)
	assert.GreaterOrEqual(t, done.Duration, 5*time.Millisecond)
	assert.False(t, errCalled)
}

func TestDispatchHooks_OnError(t *testing.T) {
	failure := &errspkg.HandlerInvocationFailedError{Handler: "upper", Channel: "input", Kind: errspkg.KindHandler, Err: errors.New("boom")}

	var got error
	var doneCalled bool
	runHooked(t, DispatchHooks{
		OnDone:  func(DispatchInfo) { doneCalled = true },
		OnError: func(_ DispatchInfo, err error) { got = err },
	}, failure)

	require.Error(t, got)
	assert.ErrorIs(t, got, errspkg.ErrHandlerInvocationFailed)
	assert.False(t, doneCalled)
}

func TestDispatchHooks_NilHooks(t *testing.T) {
	runHooked(t, DispatchHooks{}, nil)
	runHooked(t, DispatchHooks{}, errors.New("x"))
}

func TestDispatchHooks_Merge(t *testing.T) {
	var order []string
	a := DispatchHooks{
		OnStart: func(DispatchInfo) { order = append(order, "a-start") },
		OnError: func(DispatchInfo, error) { order = append(order, "a-error") },
	}
	b := DispatchHooks{
		OnStart: func(DispatchInfo) { order = append(order, "b-start") },
		OnDone:  func(DispatchInfo) { order = append(order, "b-done") },
	}

	merged := a.Merge(b)
	merged.OnStart(DispatchInfo{})
	merged.OnDone(DispatchInfo{})
	merged.OnError(DispatchInfo{}, errors.New("x"))

	assert.Equal(t, []string{"a-start", "b-start", "b-done", "a-error"}, order)
	assert.Nil(t, DispatchHooks{}.Merge(DispatchHooks{}).OnStart)
}

func TestAlertingHooks(t *testing.T) {
	var alerted bool
	hooks := AlertingHooks(func(DispatchInfo, error) { alerted = true })
	assert.Nil(t, hooks.OnStart)
	runHooked(t, hooks, errors.New("x"))
	assert.True(t, alerted)
}

func TestLoggingHooks(t *testing.T) {
	hooks := LoggingHooks(newTestLogger())
	runHooked(t, hooks, nil)
	runHooked(t, hooks, &errspkg.HandlerInvocationFailedError{Kind: errspkg.KindSend, Err: errors.New("down")})
}
