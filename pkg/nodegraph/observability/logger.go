// Package observability provides structured logging, metrics and tracing
// for the nodegraph engine.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// The package depends on nothing in nodegraph, so ids and kinds are passed
// as plain strings.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds session context to a logger.
// Returns a new logger with the session_id field.
//
// Example:
//
//	enriched := EnrichLogger(logger, "session-123")
//	enriched.Info("graph loaded") // includes session_id
func EnrichLogger(logger *slog.Logger, sessionID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("session_id", sessionID))
}

// LogCommandApplied logs an accepted command and the size of the
// invalidated region.
func LogCommandApplied(logger *slog.Logger, kind string, recorded bool, invalidated int) {
	if logger == nil {
		return
	}
	logger.Debug("command applied",
		slog.String("command", kind),
		slog.Bool("recorded", recorded),
		slog.Int("invalidated", invalidated),
	)
}

// LogCommandRejected logs a command that failed validation.
func LogCommandRejected(logger *slog.Logger, kind, reason string, err error) {
	if logger == nil {
		return
	}
	logger.Info("command rejected",
		slog.String("command", kind),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}

// LogIntegrityViolation logs a command whose payload no longer matches the
// store. This is always a caller bug.
func LogIntegrityViolation(logger *slog.Logger, kind string, err error) {
	if logger == nil {
		return
	}
	logger.Error("integrity violation",
		slog.String("command", kind),
		slog.String("error", err.Error()),
	)
}

// LogEvaluateStart logs the start of an evaluation pass.
func LogEvaluateStart(logger *slog.Logger, scheduled int) {
	if logger == nil {
		return
	}
	logger.Debug("evaluation starting",
		slog.Int("scheduled", scheduled),
	)
}

// LogEvaluateComplete logs the end of an evaluation pass.
func LogEvaluateComplete(logger *slog.Logger, durationMs float64, evaluated, failed int) {
	if logger == nil {
		return
	}
	logger.Info("evaluation completed",
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_evaluated", evaluated),
		slog.Int("nodes_failed", failed),
	)
}

// LogNodeEvaluated logs a successful node evaluation.
func LogNodeEvaluated(logger *slog.Logger, nodeID string, durationMs float64, bypassed bool) {
	if logger == nil {
		return
	}
	logger.Debug("node evaluated",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
		slog.Bool("bypassed", bypassed),
	)
}

// LogNodeError logs a node evaluation failure. Failures are recorded
// against the node and do not stop the pass, hence Warn.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogHistory logs an undo or redo step.
func LogHistory(logger *slog.Logger, op, label string) {
	if logger == nil {
		return
	}
	logger.Debug("history step",
		slog.String("operation", op),
		slog.String("label", label),
	)
}

// LogBatchCommitted logs a committed batch. A batch that folded into a
// no-op is logged with zero commands.
func LogBatchCommitted(logger *slog.Logger, label string, commands int) {
	if logger == nil {
		return
	}
	logger.Debug("batch committed",
		slog.String("label", label),
		slog.Int("commands", commands),
	)
}

// LogSnapshot logs a snapshot save or load.
func LogSnapshot(logger *slog.Logger, op, document string, revision int64, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("snapshot "+op,
		slog.String("document", document),
		slog.Int64("revision", revision),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogSnapshotError logs a snapshot failure.
func LogSnapshotError(logger *slog.Logger, op, document string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("snapshot failed",
		slog.String("operation", op),
		slog.String("document", document),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
