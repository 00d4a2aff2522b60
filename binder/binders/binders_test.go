package binders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drblury/flowbind/binder"
)

func TestBuiltinsRegistered(t *testing.T) {
	assert.Equal(t,
		[]string{"aws", "gochannel", "http", "kafka", "nats", "rabbitmq"},
		binder.Names())
}
