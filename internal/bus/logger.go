package bus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/charmbracelet/log"
)

// LoggerAdapter bridges watermill's logging interface to [log.Logger].
type LoggerAdapter struct {
	logger *log.Logger
}

var _ watermill.LoggerAdapter = (*LoggerAdapter)(nil)

// NewLoggerAdapter wraps a charm logger for use by watermill components.
func NewLoggerAdapter(logger *log.Logger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger}
}

func (a *LoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append([]any{"err", err}, flatten(fields)...)...)
}

func (a *LoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, flatten(fields)...)
}

func (a *LoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, flatten(fields)...)
}

func (a *LoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, flatten(fields)...)
}

func (a *LoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LoggerAdapter{logger: a.logger.With(flatten(fields)...)}
}

func flatten(fields watermill.LogFields) []any {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}
