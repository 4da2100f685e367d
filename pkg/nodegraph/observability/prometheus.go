package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements MetricsRecorder on a Prometheus registry.
type PrometheusMetrics struct {
	NodeEvaluations *prometheus.CounterVec
	NodeErrors      *prometheus.CounterVec
	NodeDuration    *prometheus.HistogramVec
	Evaluations     *prometheus.CounterVec
	EvalDuration    prometheus.Histogram
	Commands        *prometheus.CounterVec
	Invalidated     prometheus.Histogram
	History         *prometheus.CounterVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the engine collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer. Registering twice on the
// same registry panics, as promauto does.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		NodeEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodegraph_node_evaluations_total",
			Help: "Total number of node evaluator calls",
		}, []string{"node_type"}),

		NodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodegraph_node_errors_total",
			Help: "Total number of failed node evaluations",
		}, []string{"node_type"}),

		// Evaluators range from trivial math to texture work.
		NodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nodegraph_node_duration_seconds",
			Help:    "Duration of node evaluator calls in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"node_type"}),

		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodegraph_evaluations_total",
			Help: "Total number of evaluation passes",
		}, []string{"success"}),

		EvalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nodegraph_evaluation_duration_seconds",
			Help:    "Duration of evaluation passes in seconds",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodegraph_commands_total",
			Help: "Total number of commands by kind and outcome",
		}, []string{"kind", "accepted"}),

		Invalidated: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nodegraph_invalidated_nodes",
			Help:    "Nodes invalidated per mutation",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		History: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodegraph_history_steps_total",
			Help: "Total number of undo and redo steps",
		}, []string{"operation"}),
	}
}

var (
	defaultPrometheus     *PrometheusMetrics
	defaultPrometheusOnce sync.Once
)

// DefaultPrometheusMetrics returns a recorder registered once with
// prometheus.DefaultRegisterer, shared by every caller.
func DefaultPrometheusMetrics() *PrometheusMetrics {
	defaultPrometheusOnce.Do(func() {
		defaultPrometheus = NewPrometheusMetrics(prometheus.DefaultRegisterer)
	})
	return defaultPrometheus
}

// RecordNodeEvaluation records a node evaluation.
func (m *PrometheusMetrics) RecordNodeEvaluation(_ context.Context, nodeType string, duration time.Duration, err error) {
	m.NodeEvaluations.WithLabelValues(nodeType).Inc()
	m.NodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
	if err != nil {
		m.NodeErrors.WithLabelValues(nodeType).Inc()
	}
}

// RecordEvaluation records an evaluation pass.
func (m *PrometheusMetrics) RecordEvaluation(_ context.Context, _, failed int, duration time.Duration) {
	m.Evaluations.WithLabelValues(strconv.FormatBool(failed == 0)).Inc()
	m.EvalDuration.Observe(duration.Seconds())
}

// RecordCommand records a command outcome.
func (m *PrometheusMetrics) RecordCommand(_ context.Context, kind string, accepted bool) {
	m.Commands.WithLabelValues(kind, strconv.FormatBool(accepted)).Inc()
}

// RecordInvalidation records the size of an invalidated region.
func (m *PrometheusMetrics) RecordInvalidation(_ context.Context, nodes int) {
	m.Invalidated.Observe(float64(nodes))
}

// RecordHistory records an undo or redo step.
func (m *PrometheusMetrics) RecordHistory(_ context.Context, op string) {
	m.History.WithLabelValues(op).Inc()
}
