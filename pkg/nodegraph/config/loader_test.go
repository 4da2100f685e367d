package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/nodegraph/pkg/nodegraph/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFromYAML verifies YAML parsing.
func TestFromYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(*testing.T, config.Config)
	}{
		{
			"simple values",
			`logging:
  level: warn
history:
  limit: 42
tracing:
  enabled: true`,
			false,
			func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "warn", cfg.String("logging.level", ""))
				assert.Equal(t, 42, cfg.Int("history.limit", 0))
				assert.True(t, cfg.Bool("tracing.enabled", false))
			},
		},
		{
			"deeply nested",
			`a:
  b:
    c: 50`,
			false,
			func(t *testing.T, cfg config.Config) {
				assert.Equal(t, 50, cfg.Int("a.b.c", 0))
				assert.Equal(t, []string{"a.b.c"}, cfg.Paths())
			},
		},
		{
			"empty yaml",
			``,
			false,
			func(t *testing.T, cfg config.Config) {
				assert.Empty(t, cfg.Paths())
			},
		},
		{
			"invalid yaml",
			`invalid: yaml: content:`,
			true,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromYAML([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

// TestFromJSON verifies JSON parsing.
func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"history": {"limit": 100}, "tracing": {"enabled": true}}`))
	require.NoError(t, err)
	// JSON numbers decode as float64; Int accepts whole floats.
	assert.Equal(t, 100, cfg.Int("history.limit", 0))
	assert.True(t, cfg.Bool("tracing.enabled", false))

	_, err = config.FromJSON([]byte(`{invalid json}`))
	assert.Error(t, err)
}

// TestFromFile verifies file loading with extension detection.
func TestFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	yamlPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: fromyaml\nvalue: 123"), 0o644))

	ymlPath := filepath.Join(tmpDir, "config.YML")
	require.NoError(t, os.WriteFile(ymlPath, []byte("name: fromyml"), 0o644))

	jsonPath := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"name": "fromjson", "value": 789}`), 0o644))

	txtPath := filepath.Join(tmpDir, "config.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("content"), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr string
		want    string
	}{
		{"yaml file", yamlPath, "", "fromyaml"},
		{"uppercase yml file", ymlPath, "", "fromyml"},
		{"json file", jsonPath, "", "fromjson"},
		{"unsupported extension", txtPath, "unsupported config file extension", ""},
		{"file not found", filepath.Join(tmpDir, "nonexistent.yaml"), "read config file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromFile(tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.String("name", ""))
		})
	}
}

// TestLoadSettings verifies the file-to-settings path, including validation.
func TestLoadSettings(t *testing.T) {
	tmpDir := t.TempDir()

	good := filepath.Join(tmpDir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
history:
  limit: 25
evaluation:
  check_invariants: true
  slow_node: 10ms
metrics:
  backend: prometheus
snapshot:
  driver: sqlite
  path: graphs.db
`), 0o644))

	s, err := config.LoadSettings(good)
	require.NoError(t, err)
	assert.Equal(t, 25, s.History.Limit)
	assert.True(t, s.Evaluation.CheckInvariants)
	assert.True(t, s.Evaluation.RecoverPanics, "unset keys keep defaults")
	assert.Equal(t, config.MetricsPrometheus, s.Metrics.Backend)
	assert.Equal(t, "graphs.db", s.Snapshot.Path)

	bad := filepath.Join(tmpDir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"snapshot": {"driver": "sqlite"}}`), 0o644))

	_, err = config.LoadSettings(bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidSettings)
	assert.Contains(t, err.Error(), "snapshot.path")
}

// TestLoadSettings_UnknownKeys verifies typos are reported, not ignored.
func TestLoadSettings_UnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
history:
  limt: 25
tracing:
  enabled: true
  sampler: always
`), 0o644))

	_, err := config.LoadSettings(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrUnknownKey)
	assert.Contains(t, err.Error(), "history.limt")
	assert.Contains(t, err.Error(), "tracing.sampler")
}

// TestLoadSettings_Env verifies environment variables override the file.
func TestLoadSettings_Env(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history:\n  limit: 25\n"), 0o644))

	t.Setenv("NODEGRAPH_HISTORY_LIMIT", "7")
	t.Setenv("NODEGRAPH_EVALUATION_SLOW_NODE", "15ms")
	t.Setenv("NODEGRAPH_TRACING_ENABLED", "true")

	s, err := config.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 7, s.History.Limit)
	assert.Equal(t, 15*time.Millisecond, s.Evaluation.SlowNode)
	assert.True(t, s.Tracing.Enabled)

	t.Setenv("NODEGRAPH_METRICS_BACKEND", "statsd")
	_, err = config.LoadSettings(path)
	assert.ErrorIs(t, err, config.ErrInvalidSettings)
}

// TestApplyEnv verifies only known paths are read.
func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"APP_LOGGING_LEVEL": "debug",
		"APP_UNRELATED":     "x",
	}
	cfg := config.New(nil)
	config.ApplyEnv(cfg, "APP", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, []string{"logging.level"}, cfg.Paths())
	assert.Equal(t, "LOGGING_LEVEL", config.EnvName("", "logging.level"))
}
