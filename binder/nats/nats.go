// Package nats provides a NATS Core binder.
package nats

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/drblury/flowbind/binder"
)

// BinderName is the name used to register this binder.
const BinderName = "nats"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return wmnats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return wmnats.NewSubscriber(cfg, logger)
}

func init() {
	binder.RegisterWithCapabilities(BinderName, Build, binder.NATSCapabilities)
}

// Options returns the connection options derived from cfg.
func Options(cfg binder.Config) []natsgo.Option {
	var opts []natsgo.Option
	if name := cfg.GetNATSClientName(); name != "" {
		opts = append(opts, natsgo.Name(name))
	}
	if n := cfg.GetNATSMaxReconnects(); n != 0 {
		opts = append(opts, natsgo.MaxReconnects(n))
	}
	return opts
}

// Build creates a new NATS Core binder. JetStream is disabled.
func Build(ctx context.Context, cfg binder.Config, logger watermill.LoggerAdapter) (binder.Binder, error) {
	url := cfg.GetNATSURL()
	marshaler := &wmnats.NATSMarshaler{}
	opts := Options(cfg)

	publisher, err := PublisherFactory(
		wmnats.PublisherConfig{
			URL:         url,
			NatsOptions: opts,
			Marshaler:   marshaler,
			JetStream:   wmnats.JetStreamConfig{Disabled: true},
		},
		logger,
	)
	if err != nil {
		return binder.Binder{}, err
	}

	subscriber, err := SubscriberFactory(
		wmnats.SubscriberConfig{
			URL:         url,
			NatsOptions: opts,
			Unmarshaler: marshaler,
			JetStream:   wmnats.JetStreamConfig{Disabled: true},
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return binder.Binder{}, err
	}

	return binder.Binder{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Capabilities returns the capabilities of this binder.
func Capabilities() binder.Capabilities {
	return binder.NATSCapabilities
}
