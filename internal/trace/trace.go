// Package trace provides leveled event tracing for compiler passes.
//
// Transforms report warnings (conservative fallbacks, skipped work) and
// debug events through a Tracer. The zero configuration is the silent nop
// tracer, so library code can always emit unconditionally.
package trace

import (
	"fmt"
	"strings"
	"time"
)

// Level controls which events a tracer records.
type Level uint8

const (
	LevelOff Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of a Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "off", "":
		return LevelOff, nil
	case "warn":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|warn|info|debug)", s)
	}
}

// Event is one trace record.
type Event struct {
	Time  time.Time
	Level Level
	Pass  string
	Msg   string
}

// Tracer is the interface passes emit events through.
type Tracer interface {
	// Emit records a trace event.
	Emit(ev Event)

	// Flush ensures all buffered events are written.
	Flush() error

	// Level returns the current tracing level.
	Level() Level

	// Enabled reports whether tracing is active (Level > LevelOff).
	Enabled() bool
}

// Warnf emits a warning event.
func Warnf(t Tracer, pass, format string, args ...any) {
	emitf(t, LevelWarn, pass, format, args...)
}

// Infof emits an info event.
func Infof(t Tracer, pass, format string, args ...any) {
	emitf(t, LevelInfo, pass, format, args...)
}

// Debugf emits a debug event.
func Debugf(t Tracer, pass, format string, args ...any) {
	emitf(t, LevelDebug, pass, format, args...)
}

func emitf(t Tracer, level Level, pass, format string, args ...any) {
	if t == nil || t.Level() < level {
		return
	}
	t.Emit(Event{Time: time.Now(), Level: level, Pass: pass, Msg: fmt.Sprintf(format, args...)})
}
