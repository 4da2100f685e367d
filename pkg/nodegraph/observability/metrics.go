package observability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records engine metrics.
// Use NewMetricsRecorder() for OTel metrics, NewPrometheusMetrics() for a
// Prometheus registry, or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeEvaluation records one evaluator call with its duration and error status.
	RecordNodeEvaluation(ctx context.Context, nodeType string, duration time.Duration, err error)

	// RecordEvaluation records a completed evaluation pass.
	RecordEvaluation(ctx context.Context, evaluated, failed int, duration time.Duration)

	// RecordCommand records an applied or rejected command.
	RecordCommand(ctx context.Context, kind string, accepted bool)

	// RecordInvalidation records how many nodes a mutation dirtied.
	RecordInvalidation(ctx context.Context, nodes int)

	// RecordHistory records an undo or redo step.
	RecordHistory(ctx context.Context, op string)
}

type otelMetrics struct {
	nodeEvaluations metric.Int64Counter
	nodeLatency     metric.Float64Histogram
	nodeErrors      metric.Int64Counter
	evalRuns        metric.Int64Counter
	evalLatency     metric.Float64Histogram
	evalNodes       metric.Int64Histogram
	commands        metric.Int64Counter
	invalidated     metric.Int64Histogram
	history         metric.Int64Counter
}

var (
	globalMetrics     *otelMetrics
	globalMetricsOnce sync.Once
	globalMetricsErr  error
)

// NewMetricsRecorder returns a recorder on the global OTel meter provider.
// Instruments are created once per process; if that fails the error is
// logged and a no-op recorder is returned.
//
//	otel.SetMeterProvider(yourProvider)
//	s := nodegraph.NewSession(reg, nodegraph.WithMetrics(observability.NewMetricsRecorder()))
func NewMetricsRecorder() MetricsRecorder {
	globalMetricsOnce.Do(func() {
		globalMetrics, globalMetricsErr = newOtelMetrics(otel.GetMeterProvider())
	})
	if globalMetricsErr != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", globalMetricsErr.Error()))
		return NoopMetrics{}
	}
	return globalMetrics
}

// NewMeterRecorder returns a recorder on mp. Use it when the process does
// not install a global provider, or to give each session its own.
func NewMeterRecorder(mp metric.MeterProvider) (MetricsRecorder, error) {
	if mp == nil {
		return nil, errors.New("meter provider is required")
	}
	return newOtelMetrics(mp)
}

func newOtelMetrics(mp metric.MeterProvider) (*otelMetrics, error) {
	meter := mp.Meter(TracerName)
	var (
		m    otelMetrics
		errs []error
	)
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	ms := metric.WithUnit("ms")
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		check(err)
		return c
	}

	m.nodeEvaluations = counter("nodegraph.node.evaluations", "Number of node evaluator calls")
	m.nodeErrors = counter("nodegraph.node.errors", "Number of node evaluation errors")
	m.evalRuns = counter("nodegraph.evaluate.runs", "Number of evaluation passes")
	m.commands = counter("nodegraph.commands", "Number of commands applied or rejected")
	m.history = counter("nodegraph.history.steps", "Number of undo and redo steps")

	var err error
	m.nodeLatency, err = meter.Float64Histogram("nodegraph.node.latency_ms",
		metric.WithDescription("Node evaluation latency in milliseconds"), ms)
	check(err)
	m.evalLatency, err = meter.Float64Histogram("nodegraph.evaluate.latency_ms",
		metric.WithDescription("Evaluation pass latency in milliseconds"), ms)
	check(err)
	m.evalNodes, err = meter.Int64Histogram("nodegraph.evaluate.nodes",
		metric.WithDescription("Evaluator calls per evaluation pass"))
	check(err)
	m.invalidated, err = meter.Int64Histogram("nodegraph.cache.invalidated_nodes",
		metric.WithDescription("Nodes invalidated per mutation"))
	check(err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (m *otelMetrics) RecordNodeEvaluation(ctx context.Context, nodeType string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_type", nodeType))
	m.nodeEvaluations.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, millis(duration), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

// RecordEvaluation labels a pass successful when no node failed.
func (m *otelMetrics) RecordEvaluation(ctx context.Context, evaluated, failed int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", failed == 0))
	m.evalRuns.Add(ctx, 1, attrs)
	m.evalLatency.Record(ctx, millis(duration), attrs)
	m.evalNodes.Record(ctx, int64(evaluated))
}

func (m *otelMetrics) RecordCommand(ctx context.Context, kind string, accepted bool) {
	m.commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("accepted", accepted),
	))
}

func (m *otelMetrics) RecordInvalidation(ctx context.Context, nodes int) {
	m.invalidated.Record(ctx, int64(nodes))
}

func (m *otelMetrics) RecordHistory(ctx context.Context, op string) {
	m.history.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}
