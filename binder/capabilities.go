package binder

// Capabilities describes what a binder backend guarantees.
type Capabilities struct {
	// Name is the registered binder name.
	Name string

	// SupportsOrdering indicates messages on one destination are delivered in
	// publish order. Stream bridges rely on it to keep element order.
	SupportsOrdering bool

	// SupportsAck indicates the binder supports explicit acknowledgment.
	SupportsAck bool

	// SupportsNack indicates a nacked message is redelivered.
	SupportsNack bool

	// SupportsPartitioning indicates the binder supports partitioned destinations.
	SupportsPartitioning bool

	// MaxMessageSize is the maximum payload size in bytes (0 = unlimited/unknown).
	MaxMessageSize int
}

// SupportsReliableDelivery reports at-least-once delivery (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Predefined capability sets for the built-in binders.
var (
	GoChannelCapabilities = Capabilities{
		Name:             "gochannel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsOrdering:     true,
		SupportsAck:          true,
		SupportsPartitioning: true,
		MaxMessageSize:       1048576, // broker default message.max.bytes
	}

	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// NATS core delivers at most once.
	NATSCapabilities = Capabilities{
		Name:           "nats",
		MaxMessageSize: 1048576,
	}

	HTTPCapabilities = Capabilities{
		Name: "http",
	}

	AWSCapabilities = Capabilities{
		Name:             "aws",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		MaxMessageSize:   262144, // 256KB SNS/SQS limit
	}
)
