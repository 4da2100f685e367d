package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables read by LoadSettings.
// The variable for "evaluation.slow_node" is NODEGRAPH_EVALUATION_SLOW_NODE.
const EnvPrefix = "NODEGRAPH"

// ErrUnknownKey is returned for settings paths no field reads.
var ErrUnknownKey = errors.New("unknown settings key")

// FromFile loads a document, choosing the decoder by extension:
// .yaml, .yml or .json.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses a YAML document.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses a JSON document.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// ApplyEnv copies every set environment variable that names a known path
// into cfg. lookup is usually os.LookupEnv.
func ApplyEnv(cfg Config, prefix string, lookup func(string) (string, bool)) {
	for _, path := range KnownPaths {
		if v, ok := lookup(EnvName(prefix, path)); ok {
			cfg.Set(path, v)
		}
	}
}

// EnvName is the environment variable for path.
func EnvName(prefix, path string) string {
	name := strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// CheckKeys reports every path in cfg that Settings does not read.
func CheckKeys(cfg Config) error {
	var errs []error
	for _, p := range cfg.Paths() {
		if !slices.Contains(KnownPaths, p) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownKey, p))
		}
	}
	return errors.Join(errs...)
}

// LoadSettings reads a settings file, applies NODEGRAPH_* environment
// overrides and validates the result. Unknown keys are errors so typos do
// not silently fall back to defaults.
func LoadSettings(path string) (Settings, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	if err := CheckKeys(cfg); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	ApplyEnv(cfg, EnvPrefix, os.LookupEnv)

	s := FromConfig(cfg)
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
