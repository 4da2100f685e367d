package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config is a parsed settings document addressed by dotted paths such as
// "evaluation.slow_node". Accessors return the fallback when the path is
// missing or holds a value of the wrong kind.
//
// Values set from the environment arrive as strings, so Bool, Int and
// Duration also parse string values.
type Config struct {
	root map[string]any
}

// New creates a Config over data. A nil map gives an empty document.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{root: data}
}

// Lookup returns the value at path.
func (c Config) Lookup(path string) (any, bool) {
	var cur any = c.root
	for _, key := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores v at path, creating intermediate sections. A scalar sitting
// where a section is needed is replaced.
func (c Config) Set(path string, v any) {
	keys := strings.Split(path, ".")
	m := c.root
	for _, key := range keys[:len(keys)-1] {
		next, ok := asMap(m[key])
		if !ok {
			next = make(map[string]any)
		}
		m[key] = next
		m = next
	}
	m[keys[len(keys)-1]] = v
}

// Paths lists the path of every leaf value, sorted.
func (c Config) Paths() []string {
	var out []string
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			if sub, ok := asMap(v); ok && len(sub) > 0 {
				walk(p, sub)
				continue
			}
			out = append(out, p)
		}
	}
	walk("", c.root)
	sort.Strings(out)
	return out
}

// String returns the string at path.
func (c Config) String(path, fallback string) string {
	if s, ok := c.value(path).(string); ok {
		return s
	}
	return fallback
}

// Bool returns the boolean at path. Strings are parsed with strconv.ParseBool.
func (c Config) Bool(path string, fallback bool) bool {
	switch v := c.value(path).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// Int returns the integer at path. Whole floats (JSON numbers) and decimal
// strings are accepted.
func (c Config) Int(path string, fallback int) int {
	switch v := c.value(path).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// Duration returns the duration at path. Strings use time.ParseDuration;
// bare numbers are milliseconds.
func (c Config) Duration(path string, fallback time.Duration) time.Duration {
	switch v := c.value(path).(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v * float64(time.Millisecond))
	}
	return fallback
}

func (c Config) value(path string) any {
	v, _ := c.Lookup(path)
	return v
}

// asMap accepts the map shapes the YAML and JSON decoders produce.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
