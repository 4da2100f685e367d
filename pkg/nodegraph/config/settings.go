package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsOTel       = "otel"
	MetricsPrometheus = "prometheus"
)

// Snapshot drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// ErrInvalidSettings is wrapped by every Validate failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the typed engine configuration.
type Settings struct {
	History    HistorySettings
	Evaluation EvaluationSettings
	Logging    LoggingSettings
	Metrics    MetricsSettings
	Tracing    TracingSettings
	Snapshot   SnapshotSettings
}

// HistorySettings bounds the undo stack.
type HistorySettings struct {
	// Limit is the maximum number of undo entries. Zero means unbounded.
	Limit int
}

// EvaluationSettings tunes the evaluator and the store checks.
type EvaluationSettings struct {
	// RecoverPanics turns evaluator panics into node errors.
	RecoverPanics bool
	// CheckInvariants re-verifies the whole store after every mutation.
	CheckInvariants bool
	// SlowNode logs a warning for evaluator calls slower than this. Zero disables it.
	SlowNode time.Duration
}

// LoggingSettings selects the log handler.
type LoggingSettings struct {
	Level  string
	Format string
}

// MetricsSettings selects the metrics backend.
type MetricsSettings struct {
	Backend string
}

// TracingSettings toggles OTel spans.
type TracingSettings struct {
	Enabled bool
}

// SnapshotSettings selects the snapshot store.
type SnapshotSettings struct {
	Driver string
	Path   string
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		History:    HistorySettings{Limit: 200},
		Evaluation: EvaluationSettings{RecoverPanics: true},
		Logging:    LoggingSettings{Level: "info", Format: "text"},
		Metrics:    MetricsSettings{Backend: MetricsNone},
		Snapshot:   SnapshotSettings{Driver: DriverMemory},
	}
}

// FromConfig overlays the values present in cfg on Default.
//
//	history:
//	  limit: 500
//	evaluation:
//	  recover_panics: true
//	  check_invariants: false
//	  slow_node: 50ms
//	logging:
//	  level: debug
//	  format: json
//	metrics:
//	  backend: prometheus
//	tracing:
//	  enabled: true
//	snapshot:
//	  driver: sqlite
//	  path: graphs.db
func FromConfig(cfg Config) Settings {
	s := Default()

	s.History.Limit = cfg.Int("history.limit", s.History.Limit)

	s.Evaluation.RecoverPanics = cfg.Bool("evaluation.recover_panics", s.Evaluation.RecoverPanics)
	s.Evaluation.CheckInvariants = cfg.Bool("evaluation.check_invariants", s.Evaluation.CheckInvariants)
	s.Evaluation.SlowNode = cfg.Duration("evaluation.slow_node", s.Evaluation.SlowNode)

	s.Logging.Level = strings.ToLower(cfg.String("logging.level", s.Logging.Level))
	s.Logging.Format = strings.ToLower(cfg.String("logging.format", s.Logging.Format))

	s.Metrics.Backend = strings.ToLower(cfg.String("metrics.backend", s.Metrics.Backend))
	s.Tracing.Enabled = cfg.Bool("tracing.enabled", s.Tracing.Enabled)

	s.Snapshot.Driver = strings.ToLower(cfg.String("snapshot.driver", s.Snapshot.Driver))
	s.Snapshot.Path = cfg.String("snapshot.path", s.Snapshot.Path)

	return s
}

// KnownPaths lists every settings path FromConfig reads.
var KnownPaths = []string{
	"evaluation.check_invariants",
	"evaluation.recover_panics",
	"evaluation.slow_node",
	"history.limit",
	"logging.format",
	"logging.level",
	"metrics.backend",
	"snapshot.driver",
	"snapshot.path",
	"tracing.enabled",
}

// Validate reports every invalid field, joined.
func (s Settings) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidSettings}, args...)...))
	}

	if s.History.Limit < 0 {
		fail("history.limit must be >= 0, got %d", s.History.Limit)
	}
	if s.Evaluation.SlowNode < 0 {
		fail("evaluation.slow_node must be >= 0, got %s", s.Evaluation.SlowNode)
	}
	if _, err := parseLevel(s.Logging.Level); err != nil {
		fail("logging.level: %v", err)
	}
	switch s.Logging.Format {
	case "text", "json":
	default:
		fail("logging.format must be text or json, got %q", s.Logging.Format)
	}
	switch s.Metrics.Backend {
	case MetricsNone, MetricsOTel, MetricsPrometheus:
	default:
		fail("metrics.backend must be none, otel or prometheus, got %q", s.Metrics.Backend)
	}
	switch s.Snapshot.Driver {
	case DriverMemory:
	case DriverSQLite:
		if s.Snapshot.Path == "" {
			fail("snapshot.path is required for the sqlite driver")
		}
	default:
		fail("snapshot.driver must be memory or sqlite, got %q", s.Snapshot.Driver)
	}

	return errors.Join(errs...)
}

// NewLogger builds a logger writing to w with the configured level and format.
// An invalid level falls back to info.
func (s Settings) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(s.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if s.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}
