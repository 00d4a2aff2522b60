// Package binders imports every built-in binder for registration with
// binder.DefaultRegistry.
package binders

import (
	_ "github.com/drblury/flowbind/binder/aws"
	_ "github.com/drblury/flowbind/binder/gochannel"
	_ "github.com/drblury/flowbind/binder/http"
	_ "github.com/drblury/flowbind/binder/kafka"
	_ "github.com/drblury/flowbind/binder/nats"
	_ "github.com/drblury/flowbind/binder/rabbitmq"
)
