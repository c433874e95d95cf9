// Package log provides a leveled event logger.
package log

// API inspired by zerolog https://github.com/rs/zerolog

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level defines log level.
type Level uint8

// Logging constants, matching ffmpeg.
const (
	LevelError   Level = 16
	LevelWarning Level = 24
	LevelInfo    Level = 32
	LevelDebug   Level = 48
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	}
	return "unknown"
}

// ILogger is the logging interface consumed by library code.
type ILogger interface {
	Error() *Event
	Warn() *Event
	Info() *Event
	Debug() *Event
}

// Event defines log event.
type Event struct {
	level Level
	src   string

	logger *Logger
}

// Src sets event source.
func (e *Event) Src(source string) *Event {
	e.src = source
	return e
}

// Msg sends the *Event with msg added as the message field.
func (e *Event) Msg(msg string) {
	e.logger.write(e.level, e.src, msg)
}

// Msgf sends the event with formatted msg added as the message field.
func (e *Event) Msgf(format string, v ...interface{}) {
	e.Msg(fmt.Sprintf(format, v...))
}

// Logger writes leveled events to a sink.
type Logger struct {
	out      io.Writer
	minLevel Level

	mu sync.Mutex
}

// NewLogger returns a Logger writing events up to minLevel to out.
func NewLogger(out io.Writer, minLevel Level) *Logger {
	return &Logger{out: out, minLevel: minLevel}
}

// NewMockLogger used for testing.
func NewMockLogger() *Logger {
	return &Logger{out: io.Discard, minLevel: LevelDebug}
}

func (l *Logger) write(level Level, src, msg string) {
	if level > l.minLevel {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05")
	if src != "" {
		fmt.Fprintf(l.out, "%s [%s] %s: %s\n", ts, level, src, msg)
		return
	}
	fmt.Fprintf(l.out, "%s [%s] %s\n", ts, level, msg)
}

func (l *Logger) event(level Level) *Event {
	return &Event{level: level, logger: l}
}

// Error starts a new message with error level.
func (l *Logger) Error() *Event {
	return l.event(LevelError)
}

// Warn starts a new message with warning level.
func (l *Logger) Warn() *Event {
	return l.event(LevelWarning)
}

// Info starts a new message with info level.
func (l *Logger) Info() *Event {
	return l.event(LevelInfo)
}

// Debug starts a new message with debug level.
func (l *Logger) Debug() *Event {
	return l.event(LevelDebug)
}
