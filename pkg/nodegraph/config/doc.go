/*
Package config loads nodegraph engine settings from YAML or JSON.

# Overview

Files are parsed into a Config, a map[string]any wrapper whose typed
accessors return a default when a key is missing or has the wrong type.
FromConfig then overlays the values it finds on Default:

	cfg, err := config.FromFile("nodegraph.yaml")
	if err != nil {
	    return err
	}
	settings := config.FromConfig(cfg)
	if err := settings.Validate(); err != nil {
	    return err
	}

LoadSettings does all three steps.

# Type Coercion

Duration handles multiple input types:
  - string: parsed with time.ParseDuration ("50ms", "1s")
  - int/float64: interpreted as milliseconds
  - time.Duration: used directly

Int accepts float64 values without a fractional part, which is how JSON
decodes every number.
*/
package config
