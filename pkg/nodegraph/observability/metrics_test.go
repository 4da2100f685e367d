package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestRecorder returns a recorder on a fresh meter provider and the
// reader that collects from it.
func newTestRecorder(t *testing.T) (MetricsRecorder, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down meter provider: %v", err)
		}
	})
	m, err := NewMeterRecorder(provider)
	require.NoError(t, err)
	return m, reader
}

// collectMetrics collects all metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

// findMetric finds a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the int64 sum datapoint carrying attr.
func sumFor(t *testing.T, m *metricdata.Metrics, attr attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "Expected Sum type")
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
			return dp.Value
		}
	}
	return 0
}

func TestNewMetricsRecorder(t *testing.T) {
	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
	assert.Same(t, recorder, NewMetricsRecorder(), "instruments are created once")
}

func TestNewMeterRecorder_NilProvider(t *testing.T) {
	_, err := NewMeterRecorder(nil)
	assert.Error(t, err)
}

func TestRecordNodeEvaluation(t *testing.T) {
	m, reader := newTestRecorder(t)

	ctx := context.Background()

	t.Run("records evaluation count", func(t *testing.T) {
		m.RecordNodeEvaluation(ctx, "math.add", 50*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "nodegraph.node.evaluations")
		require.NotNil(t, metric)
		assert.GreaterOrEqual(t, sumFor(t, metric, attribute.String("node_type", "math.add")), int64(1))
	})

	t.Run("records latency", func(t *testing.T) {
		m.RecordNodeEvaluation(ctx, "math.multiply", 100*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "nodegraph.node.latency_ms")
		require.NotNil(t, metric)

		hist, ok := metric.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "Expected Histogram type")
		require.NotEmpty(t, hist.DataPoints)
	})

	t.Run("records errors when present", func(t *testing.T) {
		m.RecordNodeEvaluation(ctx, "math.clamp", 10*time.Millisecond, errors.New("node failed"))

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "nodegraph.node.errors")
		require.NotNil(t, metric)
		assert.Equal(t, int64(1), sumFor(t, metric, attribute.String("node_type", "math.clamp")))
	})
}

func TestRecordEvaluation(t *testing.T) {
	m, reader := newTestRecorder(t)

	m.RecordEvaluation(context.Background(), 3, 0, time.Millisecond)
	m.RecordEvaluation(context.Background(), 3, 1, time.Millisecond)

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "nodegraph.evaluate.runs")
	require.NotNil(t, metric)
	assert.Equal(t, int64(1), sumFor(t, metric, attribute.Bool("success", true)))
	assert.Equal(t, int64(1), sumFor(t, metric, attribute.Bool("success", false)))
	assert.NotNil(t, findMetric(rm, "nodegraph.evaluate.latency_ms"))

	nodes := findMetric(rm, "nodegraph.evaluate.nodes")
	require.NotNil(t, nodes)
	hist, ok := nodes.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, int64(6), hist.DataPoints[0].Sum)
}

func TestRecordCommandAndHistory(t *testing.T) {
	m, reader := newTestRecorder(t)

	ctx := context.Background()
	m.RecordCommand(ctx, "add-wire", true)
	m.RecordCommand(ctx, "add-wire", false)
	m.RecordCommand(ctx, "add-wire", false)
	m.RecordHistory(ctx, "undo")
	m.RecordInvalidation(ctx, 4)

	rm := collectMetrics(t, reader)

	commands := findMetric(rm, "nodegraph.commands")
	require.NotNil(t, commands)
	assert.Equal(t, int64(2), sumFor(t, commands, attribute.Bool("accepted", false)))

	history := findMetric(rm, "nodegraph.history.steps")
	require.NotNil(t, history)
	assert.Equal(t, int64(1), sumFor(t, history, attribute.String("operation", "undo")))

	invalidated := findMetric(rm, "nodegraph.cache.invalidated_nodes")
	require.NotNil(t, invalidated)
	hist, ok := invalidated.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(4), hist.DataPoints[0].Sum)
}
