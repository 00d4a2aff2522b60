package logging

import (
	"sort"

	charmlog "github.com/charmbracelet/log"
)

// NewCharmServiceLogger adapts a charmbracelet logger, used for terminal
// output by the CLI. Trace entries are written at debug level.
func NewCharmServiceLogger(log *charmlog.Logger) ServiceLogger {
	if log == nil {
		panic("flowbind: charm logger cannot be nil")
	}
	return &charmServiceLogger{inner: log}
}

type charmServiceLogger struct {
	inner  *charmlog.Logger
	fields LogFields
}

func (c *charmServiceLogger) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return c
	}
	return &charmServiceLogger{inner: c.inner, fields: mergeFields(c.fields, fields)}
}

func (c *charmServiceLogger) Debug(msg string, fields LogFields) {
	c.inner.Debug(msg, c.keyvals(fields, nil)...)
}

func (c *charmServiceLogger) Info(msg string, fields LogFields) {
	c.inner.Info(msg, c.keyvals(fields, nil)...)
}

func (c *charmServiceLogger) Error(msg string, err error, fields LogFields) {
	c.inner.Error(msg, c.keyvals(fields, err)...)
}

func (c *charmServiceLogger) Trace(msg string, fields LogFields) {
	c.inner.Debug(msg, c.keyvals(fields, nil)...)
}

// keyvals flattens fields in key order so output is stable.
func (c *charmServiceLogger) keyvals(fields LogFields, err error) []any {
	all := mergeFields(c.fields, fields)
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]any, 0, len(keys)*2+2)
	for _, k := range keys {
		kv = append(kv, k, all[k])
	}
	if err != nil {
		kv = append(kv, "err", err)
	}
	return kv
}
