package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for all voicebot spans,
// matching the meter scope.
const tracerName = "github.com/RupeekSJ/ai-calling-Somil"

// Tracer returns the voicebot tracer from the globally registered provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan opens a span under the voicebot scope. The turn pipeline uses it
// to mark session.turn, stt.transcribe and tts.synthesize; the HTTP
// middleware uses it for request spans. Callers must End the returned span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID reports the trace ID of the span in ctx, or "" when ctx
// carries no recording span. It is the value exposed to clients in the
// X-Correlation-ID header so a support ticket can be matched to a trace.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns the default slog logger annotated with the trace and span
// IDs from ctx, so log lines written inside a span can be joined with it.
// Without a span in ctx it returns the default logger unchanged.
func Logger(ctx context.Context) *slog.Logger {
	log := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	)
}
