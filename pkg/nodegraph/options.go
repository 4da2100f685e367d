package nodegraph

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/nodegraph/pkg/nodegraph/config"
	"github.com/randalmurphal/nodegraph/pkg/nodegraph/observability"
)

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

// sessionConfig holds configuration for a session.
type sessionConfig struct {
	id              string
	logger          *slog.Logger
	metrics         observability.MetricsRecorder
	spans           observability.SpanManager
	tracingEnabled  bool
	historyLimit    int
	checkInvariants bool
	recoverPanics   bool
	slowNode        time.Duration
}

// defaultSessionConfig returns the default session configuration.
func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		logger:        slog.Default(),
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
		recoverPanics: true,
	}
}

// WithLogger sets the session logger. It is enriched with session_id.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(c *sessionConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
// Use observability.NewMetricsRecorder() for OpenTelemetry or
// observability.NewPrometheusMetrics(reg) for Prometheus.
func WithMetrics(m observability.MetricsRecorder) SessionOption {
	return func(c *sessionConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpans enables tracing through sm.
func WithSpans(sm observability.SpanManager) SessionOption {
	return func(c *sessionConfig) {
		if sm != nil {
			c.spans = sm
			c.tracingEnabled = true
		}
	}
}

// WithTracing enables OpenTelemetry tracing on the global tracer provider.
func WithTracing() SessionOption {
	return WithSpans(observability.NewSpanManager())
}

// WithHistoryLimit bounds the undo stack. Zero or negative means unbounded.
// Default: unbounded
func WithHistoryLimit(n int) SessionOption {
	return func(c *sessionConfig) {
		c.historyLimit = n
	}
}

// WithSessionID sets the session id. Default: a random UUID.
func WithSessionID(id string) SessionOption {
	return func(c *sessionConfig) {
		c.id = id
	}
}

// WithCheckInvariants re-verifies every store invariant after each
// mutation and panics on a violation. Meant for tests and debugging; it
// costs O(V+E) per command.
func WithCheckInvariants(enabled bool) SessionOption {
	return func(c *sessionConfig) {
		c.checkInvariants = enabled
	}
}

// WithEvaluatorPanicRecovery controls whether evaluator panics are recorded
// as node errors. Default: true
func WithEvaluatorPanicRecovery(enabled bool) SessionOption {
	return func(c *sessionConfig) {
		c.recoverPanics = enabled
	}
}

// WithSettings applies loaded settings. Options listed after it override
// the values it sets.
//
// Example:
//
//	settings, err := config.LoadSettings("nodegraph.yaml")
//	if err != nil {
//	    return err
//	}
//	s := nodegraph.NewSession(reg,
//	    nodegraph.WithSettings(settings),
//	    nodegraph.WithLogger(settings.NewLogger(os.Stderr)),
//	)
func WithSettings(s config.Settings) SessionOption {
	return func(c *sessionConfig) {
		c.historyLimit = s.History.Limit
		c.checkInvariants = s.Evaluation.CheckInvariants
		c.recoverPanics = s.Evaluation.RecoverPanics
		c.slowNode = s.Evaluation.SlowNode

		switch s.Metrics.Backend {
		case config.MetricsOTel:
			c.metrics = observability.NewMetricsRecorder()
		case config.MetricsPrometheus:
			c.metrics = observability.DefaultPrometheusMetrics()
		default:
			c.metrics = observability.NoopMetrics{}
		}

		if s.Tracing.Enabled {
			c.spans = observability.NewSpanManager()
			c.tracingEnabled = true
		}
	}
}
