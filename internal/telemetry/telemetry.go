// Package telemetry defines the narrow logging, metrics, and tracing
// interfaces used throughout the runtime. Components depend on these
// interfaces, never on a concrete backend, so tests can inject no-op
// implementations and the binary can inject OpenTelemetry/Clue-backed ones.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger emits structured log messages. Key-value pairs are passed as
	// a flat variadic list (k1, v1, k2, v2, ...); implementations pair them
	// up. The Clue-backed logger keeps a trailing unpaired key with a nil
	// value.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, timers, and gauges. Tags are a flat
	// variadic list of (key, value) string pairs used as metric dimensions.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer starts spans and recovers the current span from a context.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
		Span(ctx context.Context) Span
	}

	// Span is the subset of an OpenTelemetry span the runtime needs.
	Span interface {
		End(opts ...trace.SpanEndOption)
		AddEvent(name string, attrs ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}
)
