// Package logship buffers structured log records in memory and periodically
// ships them as newline-delimited JSON objects to an object-storage bucket.
//
// The ingestion path (Emit) is safe to call from any goroutine and never
// waits on network I/O; a single background flush actor drains the buffer on
// an interval (or when the buffer crosses its size threshold) and uploads
// the batch under a date/partition key.
package logship

import (
	"time"
)

// Level is the severity of a Record.
type Level int8

const (
	LevelTrace Level = iota - 1
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the wire name of the level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Field is a single key/value pair attached to a Record. Fields keep their
// append order through serialization.
type Field struct {
	Key   string
	Value any
}

// SpanInfo carries span identity and timing for records emitted from within
// a span. Busy is time spent between enter and exit; Idle is the remainder
// of the span's lifetime.
type SpanInfo struct {
	Name    string
	Elapsed time.Duration
	Busy    time.Duration
	Idle    time.Duration
}

// Record is one structured log event captured for shipping. Records are
// immutable once constructed: they are built on the ingestion path,
// serialized immediately, and not retained.
type Record struct {
	Timestamp time.Time
	Level     Level
	Target    string
	Message   string
	Fields    []Field
	Span      *SpanInfo
}

// NewRecord builds a record stamped with the current time.
func NewRecord(level Level, target, message string, fields ...Field) Record {
	return Record{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Target:    target,
		Message:   message,
		Fields:    fields,
	}
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}
