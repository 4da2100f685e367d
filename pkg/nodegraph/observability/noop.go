package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NoopMetrics discards every measurement. It is the session default.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordNodeEvaluation(context.Context, string, time.Duration, error) {}
func (NoopMetrics) RecordEvaluation(context.Context, int, int, time.Duration)          {}
func (NoopMetrics) RecordCommand(context.Context, string, bool)                        {}
func (NoopMetrics) RecordInvalidation(context.Context, int)                            {}
func (NoopMetrics) RecordHistory(context.Context, string)                              {}

// NoopSpanManager starts no spans. The span it hands back is whatever span
// ctx already carries (a non-recording one when there is none), so callers
// that were handed a traced context by their own caller keep it.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

func (NoopSpanManager) StartEvaluateSpan(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (NoopSpanManager) StartNodeSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

// EndSpanWithError leaves the span alone; it belongs to the caller.
func (NoopSpanManager) EndSpanWithError(trace.Span, error) {}

func (NoopSpanManager) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}
