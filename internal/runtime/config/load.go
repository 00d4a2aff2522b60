package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	errspkg "github.com/drblury/flowbind/internal/runtime/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads a YAML config from path. With strict set, unknown keys are
// rejected.
func LoadFile(path string, strict bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Load(bytes.NewReader(b), strict)
}

// Load decodes and validates a YAML config.
func Load(r io.Reader, strict bool) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(strict)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	if cfg.BinderType == "" {
		cfg.BinderType = "gochannel"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateStruct(c *Config) []error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{err}
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		errs = append(errs, &errspkg.ConfigValidationError{Field: fe.Namespace(), Reason: reason})
	}
	return errs
}
