// Package tracing installs the process-wide OpenTelemetry tracer provider.
// Spans are written to the structured log rather than shipped to a collector.
package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SlogExporter writes finished spans to a slog.Logger at debug level.
type SlogExporter struct {
	logger *slog.Logger
}

// NewSlogExporter returns an exporter logging to logger.
func NewSlogExporter(logger *slog.Logger) *SlogExporter {
	return &SlogExporter{logger: logger}
}

// ExportSpans logs one "span" event per finished span.
func (e *SlogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []any{
			"name", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"span_id", s.SpanContext().SpanID().String(),
			"duration_ms", float64(s.EndTime().Sub(s.StartTime()).Microseconds()) / 1000.0,
			"status", s.Status().Code.String(),
		}
		if d := s.Status().Description; d != "" {
			attrs = append(attrs, "status_description", d)
		}
		for _, kv := range s.Attributes() {
			attrs = append(attrs, string(kv.Key), kv.Value.Emit())
		}
		e.logger.DebugContext(ctx, "span", attrs...)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *SlogExporter) Shutdown(context.Context) error { return nil }

// Setup installs a batching provider that exports to logger and returns its
// shutdown func, which flushes pending spans.
// POST: otel.GetTracerProvider returns the new provider
func Setup(logger *slog.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(NewSlogExporter(logger)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
