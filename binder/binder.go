// Package binder defines how flowbind connects channels to message
// infrastructure. Each binder implementation (kafka, rabbitmq, aws, ...) lives
// in its own sub-package and registers itself with the binder registry.
package binder

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Binder combines the publisher and subscriber pair a builder produced.
type Binder struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes the publisher and the subscriber. When both share one
// underlying pub/sub it is closed once.
func (b Binder) Close() error {
	var pubErr, subErr error
	if b.Publisher != nil {
		pubErr = b.Publisher.Close()
	}
	if b.Subscriber != nil && any(b.Subscriber) != any(b.Publisher) {
		subErr = b.Subscriber.Close()
	}
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

// Builder creates a binder from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Binder, error)

// Config provides the values binders read. It keeps binder packages
// independent of the full config package.
type Config interface {
	// GetBinderType returns the registered binder name.
	GetBinderType() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string
	GetNATSClientName() string
	GetNATSMaxReconnects() int

	// HTTP
	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by publishers that report their own
// capabilities. It takes precedence over the registered set.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// Runner is implemented by subscribers that have to be started once every
// subscription is in place, like the HTTP binder's server. The runtime calls
// Run after its router reports running.
type Runner interface {
	Run(ctx context.Context) error
}
