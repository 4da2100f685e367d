package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every nodegraph span.
const TracerName = "nodegraph"

// Span attribute keys.
const (
	AttrSessionID      = attribute.Key("session.id")
	AttrNodesScheduled = attribute.Key("nodes.scheduled")
	AttrNodeID         = attribute.Key("node.id")
	AttrNodeType       = attribute.Key("node.type")
)

// tracer follows the global provider, including one installed later.
var tracer = otel.Tracer(TracerName)

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartEvaluateSpan starts the root span of an evaluation pass.
	StartEvaluateSpan(ctx context.Context, sessionID string, scheduled int) (context.Context, trace.Span)

	// StartNodeSpan starts a span for one evaluator call, a child of the
	// evaluate span carried by ctx.
	StartNodeSpan(ctx context.Context, nodeID, nodeType string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// SpanOption configures NewSpanManager.
type SpanOption func(*otelSpanManager)

// WithTracerProvider uses tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) SpanOption {
	return func(m *otelSpanManager) {
		if tp != nil {
			m.tracer = tp.Tracer(TracerName)
		}
	}
}

type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager backed by OpenTelemetry. Without
// WithTracerProvider it uses the global provider:
//
//	otel.SetTracerProvider(yourProvider)
//	s := nodegraph.NewSession(reg, nodegraph.WithTracing())
func NewSpanManager(opts ...SpanOption) SpanManager {
	m := &otelSpanManager{tracer: tracer}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *otelSpanManager) StartEvaluateSpan(ctx context.Context, sessionID string, scheduled int) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "nodegraph.evaluate",
		trace.WithAttributes(
			AttrSessionID.String(sessionID),
			AttrNodesScheduled.Int(scheduled),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// Node spans are named by type so traces group by what ran; the id is an
// attribute.
func (m *otelSpanManager) StartNodeSpan(ctx context.Context, nodeID, nodeType string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "nodegraph.node."+nodeType,
		trace.WithAttributes(
			AttrNodeID.String(nodeID),
			AttrNodeType.String(nodeType),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// EndSpanWithError sets the span status from err and ends it. A cancelled
// or expired context is not a failure: the span keeps an unset status and
// gets a "canceled" event instead.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		span.AddEvent("canceled", trace.WithAttributes(attribute.String("reason", err.Error())))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// AddSpanEvent adds an event to the recording span in ctx, if any.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
