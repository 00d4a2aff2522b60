package binder

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/flowbind/internal/runtime/config"
)

type mockPublisher struct{ closed int }

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }
func (m *mockPublisher) Close() error                                             { m.closed++; return nil }

type mockSubscriber struct {
	closed int
	err    error
}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (m *mockSubscriber) Close() error { m.closed++; return m.err }

type mockPubSub struct {
	mockPublisher
	mockSubscriber
}

func (m *mockPubSub) Close() error { m.mockPublisher.closed++; return nil }

func staticBuilder(pub message.Publisher, sub message.Subscriber) Builder {
	return func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Binder, error) {
		return Binder{Publisher: pub, Subscriber: sub}, nil
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NotNil(t, reg)
	assert.Empty(t, reg.Names())
	assert.False(t, reg.Has("gochannel"))
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test-binder", staticBuilder(&mockPublisher{}, &mockSubscriber{}))

	assert.True(t, reg.Has("test-binder"))
	assert.Equal(t, []string{"test-binder"}, reg.Names())
	assert.Equal(t, Capabilities{Name: "test-binder"}, reg.GetCapabilities("test-binder"))
}

func TestRegistry_RegisterWithCapabilities(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWithCapabilities("kafka", staticBuilder(nil, nil), KafkaCapabilities)

	caps := reg.GetCapabilities("kafka")
	assert.Equal(t, KafkaCapabilities, caps)
	assert.True(t, caps.SupportsPartitioning)
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"nats", "aws", "kafka"} {
		reg.Register(name, staticBuilder(nil, nil))
	}
	assert.Equal(t, []string{"aws", "kafka", "nats"}, reg.Names())
}

func TestRegistry_Build(t *testing.T) {
	pub := &mockPublisher{}
	sub := &mockSubscriber{}

	reg := NewRegistry()
	reg.Register("test", staticBuilder(pub, sub))

	b, err := reg.Build(context.Background(), &config.Config{BinderType: "test"}, nil)
	require.NoError(t, err)
	assert.Same(t, pub, b.Publisher)
	assert.Same(t, sub, b.Subscriber)
}

func TestRegistry_BuildErrors(t *testing.T) {
	reg := NewRegistry()
	reg.Register("broken", func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Binder, error) {
		return Binder{}, errors.New("dial failed")
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := reg.Build(context.Background(), nil, watermill.NopLogger{})
		assert.ErrorIs(t, err, ErrConfigRequired)
	})

	t.Run("unknown binder lists registered names", func(t *testing.T) {
		_, err := reg.Build(context.Background(), &config.Config{BinderType: "carrier-pigeon"}, watermill.NopLogger{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown binder: "carrier-pigeon"`)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("builder error is wrapped with the binder name", func(t *testing.T) {
		_, err := reg.Build(context.Background(), &config.Config{BinderType: "broken"}, watermill.NopLogger{})
		require.Error(t, err)
		assert.Equal(t, "binder broken: dial failed", err.Error())
	})
}

func TestDefaultRegistryHelpers(t *testing.T) {
	original := DefaultRegistry
	defer func() { DefaultRegistry = original }()
	DefaultRegistry = NewRegistry()

	RegisterWithCapabilities("gochannel", staticBuilder(&mockPublisher{}, &mockSubscriber{}), GoChannelCapabilities)
	Register("plain", staticBuilder(nil, nil))

	assert.Equal(t, []string{"gochannel", "plain"}, Names())
	assert.Equal(t, GoChannelCapabilities, GetCapabilities("gochannel"))

	b, err := Build(context.Background(), &config.Config{BinderType: "gochannel"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, b.Publisher)
}

func TestBinderClose(t *testing.T) {
	t.Run("separate publisher and subscriber", func(t *testing.T) {
		pub := &mockPublisher{}
		sub := &mockSubscriber{err: errors.New("sub close")}
		err := Binder{Publisher: pub, Subscriber: sub}.Close()
		assert.EqualError(t, err, "sub close")
		assert.Equal(t, 1, pub.closed)
		assert.Equal(t, 1, sub.closed)
	})

	t.Run("shared pub/sub closes once", func(t *testing.T) {
		ps := &mockPubSub{}
		require.NoError(t, Binder{Publisher: ps, Subscriber: ps}.Close())
		assert.Equal(t, 1, ps.mockPublisher.closed)
	})

	t.Run("zero binder", func(t *testing.T) {
		assert.NoError(t, Binder{}.Close())
	})
}

func TestCapabilities(t *testing.T) {
	assert.True(t, GoChannelCapabilities.SupportsReliableDelivery())
	assert.True(t, AWSCapabilities.SupportsReliableDelivery())
	assert.False(t, KafkaCapabilities.SupportsReliableDelivery())
	assert.False(t, NATSCapabilities.SupportsOrdering)
	assert.Equal(t, 262144, AWSCapabilities.MaxMessageSize)
	assert.Zero(t, HTTPCapabilities.MaxMessageSize)
}
