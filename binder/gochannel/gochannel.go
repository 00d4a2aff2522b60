// Package gochannel provides an in-memory binder backed by Go channels.
// It is useful for tests and local development.
package gochannel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/flowbind/binder"
)

// BinderName is the name used to register this binder.
const BinderName = "gochannel"

// Factory allows overriding the pub/sub creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	binder.RegisterWithCapabilities(BinderName, Build, binder.GoChannelCapabilities)
}

// Config returns the pub/sub settings the binder uses. Publishing blocks
// until the subscriber acks, which keeps per-destination order. Messages are
// kept in memory so a subscriber that arrives after a producer started still
// receives every item.
func Config() gochannel.Config {
	return gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
		Persistent:                     true,
	}
}

// Build creates a new in-memory binder.
func Build(ctx context.Context, cfg binder.Config, logger watermill.LoggerAdapter) (binder.Binder, error) {
	pub, sub := Factory(Config(), logger)
	return binder.Binder{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}

// Capabilities returns the capabilities of this binder.
func Capabilities() binder.Capabilities {
	return binder.GoChannelCapabilities
}
