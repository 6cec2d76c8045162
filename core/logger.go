package core

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior (e.g., integration with
// zerolog, logrus, zap); see the log/zerolog adapter package.
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger is a simple logger implementation using the standard log package
type DefaultLogger struct{}

// NewDefaultLogger creates a new DefaultLogger
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, fields ...Field) {
	l.log("DEBUG", msg, fields...)
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, fields ...Field) {
	l.log("INFO", msg, fields...)
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, fields ...Field) {
	l.log("WARN", msg, fields...)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields...)
}

func (l *DefaultLogger) log(level, msg string, fields ...Field) {
	if len(fields) == 0 {
		log.Printf("[%s] %s", level, msg)
		return
	}

	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch v := f.Value.(type) {
		case time.Time:
			fmt.Fprintf(&sb, "%s=%s", f.Key, v.Format(time.RFC3339Nano))
		default:
			fmt.Fprintf(&sb, "%s=%v", f.Key, v)
		}
	}
	log.Printf("[%s] %s %s", level, msg, sb.String())
}

// NilLogger discards all log output.
type NilLogger struct{}

// Debug is a no-op.
func (l *NilLogger) Debug(msg string, fields ...Field) {}

// Info is a no-op.
func (l *NilLogger) Info(msg string, fields ...Field) {}

// Warn is a no-op.
func (l *NilLogger) Warn(msg string, fields ...Field) {}

// Error is a no-op.
func (l *NilLogger) Error(msg string, fields ...Field) {}
