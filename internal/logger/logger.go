// Package logger writes one JSON object per line, the same shape the HTTP
// request logs and migration logs use: ts, level, msg plus arbitrary fields.
package logger

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Fields are extra key/value pairs attached to a log entry.
type Fields map[string]any

// Logger is safe for concurrent use.
type Logger struct {
	mu   *sync.Mutex
	enc  *json.Encoder
	loc  *time.Location
	base Fields
}

// New returns a Logger writing to out with timestamps in loc.
func New(out io.Writer, loc *time.Location) *Logger {
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{mu: &sync.Mutex{}, enc: json.NewEncoder(out), loc: loc}
}

// Default logs to stdout in UTC.
func Default() *Logger {
	return New(os.Stdout, time.UTC)
}

// Nop discards everything.
func Nop() *Logger {
	return New(io.Discard, time.UTC)
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields Fields) *Logger {
	merged := make(Fields, len(l.base)+len(fields))
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{mu: l.mu, enc: l.enc, loc: l.loc, base: merged}
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields Fields) {
	l.write("info", msg, nil, fields)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, err error, fields Fields) {
	l.write("warn", msg, err, fields)
}

// Error logs at error level with the error message under "error".
func (l *Logger) Error(msg string, err error, fields Fields) {
	l.write("error", msg, err, fields)
}

func (l *Logger) write(level, msg string, err error, fields Fields) {
	entry := make(map[string]any, len(l.base)+len(fields)+4)
	for k, v := range l.base {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().In(l.loc).Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg
	if err != nil {
		entry["error"] = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.enc.Encode(entry)
}
