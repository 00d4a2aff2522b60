package messaging

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/flowbind/internal/runtime/ids"
)

// FromWatermill copies a Watermill message into a Message. The payload is
// copied so the result stays valid after the transport reuses its buffers.
func FromWatermill(msg *message.Message) Message {
	payload := make([]byte, len(msg.Payload))
	copy(payload, msg.Payload)

	headers := make(Headers, len(msg.Metadata))
	for k, v := range msg.Metadata {
		headers[k] = v
	}
	return Message{Payload: payload, Headers: headers}
}

// ToWatermill converts a byte-payload Message into a Watermill message with a
// fresh ULID as its UUID.
func ToWatermill(m Message) (*message.Message, error) {
	payload, ok := m.Bytes()
	if !ok {
		return nil, fmt.Errorf("messaging: payload of type %T must be converted to bytes first", m.Payload)
	}

	wm := message.NewMessage(ids.MessageID(), payload)
	for k, v := range m.Headers {
		wm.Metadata.Set(k, v)
	}
	return wm, nil
}
