// Package logging wraps zerolog with the component/trace-id conventions
// used throughout the knowledge store.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ContextKey string

const TraceIDKey ContextKey = "trace_id"

// Logger is a thin, chainable facade over a zerolog.Logger.
type Logger struct {
	z zerolog.Logger
}

var base = newBase()

func newBase() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level := ParseLogLevel(os.Getenv("LOG_LEVEL"))

	var w zerolog.Logger
	if strings.EqualFold(os.Getenv("LOG_JSON"), "false") {
		w = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		w = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return w.Level(level)
}

// NewLogger returns a logger tagged with the given component name.
func NewLogger(component string) Logger {
	return Logger{z: base}.WithComponent(component)
}

// WithComponent tags subsequent entries with a component name.
func (l Logger) WithComponent(component string) Logger {
	return Logger{z: l.z.With().Str("component", component).Logger()}
}

// WithTraceID tags subsequent entries with a trace/request id.
func (l Logger) WithTraceID(traceID string) Logger {
	return Logger{z: l.z.With().Str("trace_id", traceID).Logger()}
}

// WithContext pulls a trace id out of ctx, if present, and tags the logger.
func (l Logger) WithContext(ctx context.Context) Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return l.WithTraceID(traceID)
	}
	return l
}

func (l Logger) Debug(msg string, kv ...interface{}) { event(l.z.Debug(), msg, kv...) }
func (l Logger) Info(msg string, kv ...interface{})  { event(l.z.Info(), msg, kv...) }
func (l Logger) Warn(msg string, kv ...interface{})  { event(l.z.Warn(), msg, kv...) }
func (l Logger) Error(msg string, kv ...interface{}) { event(l.z.Error(), msg, kv...) }

// Fatal logs at fatal level and exits the process with status 1, matching
// the spec's "schema/extension/configuration failures at startup" contract.
func (l Logger) Fatal(msg string, kv ...interface{}) { event(l.z.Fatal(), msg, kv...) }

func event(e *zerolog.Event, msg string, kv ...interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

func ParseLogLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
