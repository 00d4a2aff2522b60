// Package http provides an HTTP binder. Outbound messages are POSTed to
// the publisher URL joined with the destination; inbound messages arrive on a
// local server with one route per destination.
package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/flowbind/binder"
)

// BinderName is the name used to register this binder.
const BinderName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

func init() {
	binder.RegisterWithCapabilities(BinderName, Build, binder.HTTPCapabilities)
}

// Build creates a new HTTP binder.
func Build(ctx context.Context, cfg binder.Config, logger watermill.LoggerAdapter) (binder.Binder, error) {
	serverAddr := cfg.GetHTTPServerAddress()
	publisherURL := cfg.GetHTTPPublisherURL()

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				return http.DefaultMarshalMessageFunc(PublishURL(publisherURL, topic), msg)
			},
		},
		logger,
	)
	if err != nil {
		return binder.Binder{}, err
	}

	subscriber, err := SubscriberFactory(
		serverAddr,
		http.SubscriberConfig{
			UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return binder.Binder{}, err
	}

	return binder.Binder{
		Publisher:  publisher,
		Subscriber: &routedSubscriber{Subscriber: subscriber, logger: logger},
	}, nil
}

// Capabilities returns the capabilities of this binder.
func Capabilities() binder.Capabilities {
	return binder.HTTPCapabilities
}

// PublishURL joins the publisher base URL and a destination.
func PublishURL(base, destination string) string {
	return strings.TrimRight(base, "/") + Route(destination)
}

// Route returns the server path a destination is received on.
func Route(destination string) string {
	return "/" + strings.TrimLeft(destination, "/")
}

// routedSubscriber maps destinations to server routes and starts the server
// once the runtime has subscribed every channel.
type routedSubscriber struct {
	message.Subscriber
	logger watermill.LoggerAdapter
}

func (s *routedSubscriber) Subscribe(ctx context.Context, destination string) (<-chan *message.Message, error) {
	return s.Subscriber.Subscribe(ctx, Route(destination))
}

// Run starts the HTTP server when the wrapped subscriber owns one.
func (s *routedSubscriber) Run(ctx context.Context) error {
	sub, ok := s.Subscriber.(*http.Subscriber)
	if !ok {
		return nil
	}
	if err := sub.StartHTTPServer(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		s.logger.Error("Failed to start HTTP subscriber server", err, nil)
		return err
	}
	return nil
}
