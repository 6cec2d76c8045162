// Package zerolog adapts github.com/rs/zerolog to the core.Logger interface.
package zerolog

import (
	"github.com/arcusq/go-task-queue/core"
	rzerolog "github.com/rs/zerolog"
)

// Logger forwards core.Logger calls to a zerolog.Logger. Fields become
// structured event fields under their original keys.
type Logger struct {
	log rzerolog.Logger
}

var _ core.Logger = (*Logger)(nil)

// New wraps a zerolog.Logger. The zerolog level configuration decides which
// messages are emitted; the adapter forwards everything.
func New(log rzerolog.Logger) *Logger {
	return &Logger{log: log}
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(msg string, fields ...core.Field) {
	emit(l.log.Debug(), msg, fields)
}

// Info logs an info message with optional fields.
func (l *Logger) Info(msg string, fields ...core.Field) {
	emit(l.log.Info(), msg, fields)
}

// Warn logs a warning message with optional fields.
func (l *Logger) Warn(msg string, fields ...core.Field) {
	emit(l.log.Warn(), msg, fields)
}

// Error logs an error message with optional fields.
func (l *Logger) Error(msg string, fields ...core.Field) {
	emit(l.log.Error(), msg, fields)
}

func emit(e *rzerolog.Event, msg string, fields []core.Field) {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	e.Msg(msg)
}
