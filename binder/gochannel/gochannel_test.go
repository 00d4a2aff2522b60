package gochannel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/flowbind/binder"
	"github.com/drblury/flowbind/internal/runtime/config"
)

func TestRegistered(t *testing.T) {
	assert.True(t, binder.DefaultRegistry.Has(BinderName))
	assert.Equal(t, binder.GoChannelCapabilities, binder.GetCapabilities(BinderName))
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities()
	assert.Equal(t, "gochannel", caps.Name)
	assert.True(t, caps.SupportsOrdering)
}

func TestConfigBlocksUntilAck(t *testing.T) {
	assert.True(t, Config().BlockPublishUntilSubscriberAck)
	assert.True(t, Config().Persistent, "late subscribers must see earlier items")
}

func TestBuild_UsesFactory(t *testing.T) {
	original := Factory
	defer func() { Factory = original }()

	var got gochannel.Config
	Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
		got = cfg
		return original(cfg, logger)
	}

	b, err := Build(context.Background(), &config.Config{}, watermill.NopLogger{})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, Config(), got)
}

func TestBuild_RoundTrip(t *testing.T) {
	b, err := Build(context.Background(), &config.Config{}, watermill.NopLogger{})
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := b.Subscriber.Subscribe(ctx, "orders")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- b.Publisher.Publish("orders", message.NewMessage("1", []byte("a")), message.NewMessage("2", []byte("b")))
	}()

	for _, want := range []string{"a", "b"} {
		select {
		case msg := <-messages:
			assert.Equal(t, want, string(msg.Payload))
			msg.Ack()
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	require.NoError(t, <-done)
}
