// Package logger wraps the standard log package with levels. Components log
// through a prefixed Logger so lines from the scheduler, bus and web server
// can be told apart.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Level orders log lines by severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "info"
}

// DebugEnv turns on debug lines for loggers created by New
const DebugEnv = "LAGMON_DEBUG"

// Std writes lines at or above min to a standard library logger
type Std struct {
	out    *log.Logger
	prefix string
	min    Level
}

// New returns a logger on the default log output. Debug lines are kept only
// when LAGMON_DEBUG is set at creation time.
func New(prefix string) Logger {
	min := LevelInfo
	if os.Getenv(DebugEnv) != "" {
		min = LevelDebug
	}
	return NewStd(log.Default(), prefix, min)
}

func NewStd(out *log.Logger, prefix string, min Level) *Std {
	return &Std{out: out, prefix: prefix, min: min}
}

func (l *Std) logf(level Level, format string, args ...interface{}) {
	if level < l.min {
		return
	}
	var b strings.Builder
	if l.prefix != "" {
		b.WriteString(l.prefix)
		b.WriteByte(' ')
	}
	if level != LevelInfo {
		b.WriteString(strings.ToUpper(level.String()))
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, format, args...)
	l.out.Output(3, b.String())
}

func (l *Std) Debug(format string, args ...interface{}) { l.logf(LevelDebug, format, args...) }
func (l *Std) Info(format string, args ...interface{})  { l.logf(LevelInfo, format, args...) }
func (l *Std) Warn(format string, args ...interface{})  { l.logf(LevelWarn, format, args...) }
func (l *Std) Error(format string, args ...interface{}) { l.logf(LevelError, format, args...) }

type discard struct{}

func (discard) Debug(string, ...interface{}) {}
func (discard) Info(string, ...interface{})  {}
func (discard) Warn(string, ...interface{})  {}
func (discard) Error(string, ...interface{}) {}

// Noop drops everything
func Noop() Logger { return discard{} }

// Entry is one line kept by a BufferLogger
type Entry struct {
	Level   Level
	Message string
}

// BufferLogger keeps every line in memory, for tests
type BufferLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (l *BufferLogger) record(level Level, format string, args []interface{}) {
	l.mu.Lock()
	l.entries = append(l.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
	l.mu.Unlock()
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.record(LevelDebug, format, args) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.record(LevelInfo, format, args) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.record(LevelWarn, format, args) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.record(LevelError, format, args) }

// Entries returns a copy of the kept lines
func (l *BufferLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// HasLevel reports whether a line was logged at the named level ("warn", "error", ...)
func (l *BufferLogger) HasLevel(level string) bool {
	for _, e := range l.Entries() {
		if e.Level.String() == level {
			return true
		}
	}
	return false
}
