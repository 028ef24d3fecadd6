package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override file settings.
const EnvPrefix = "ZIPSITE_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (ZIPSITE_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: ZIPSITE_PORT -> port, etc.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validDecodePolicies is the set of recognized decode_errors values.
var validDecodePolicies = map[DecodePolicy]bool{
	DecodeAbort: true,
	DecodeSkip:  true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	if c.DecodeErrors != "" && !validDecodePolicies[c.DecodeErrors] {
		return fmt.Errorf("invalid decode_errors %q: must be one of abort, skip", c.DecodeErrors)
	}

	for _, p := range append(append([]string(nil), c.Include...), c.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}

	if c.MaxArchiveBytes < 0 {
		return fmt.Errorf("max_archive_bytes must be non-negative")
	}
	if c.MaxEntryBytes < 0 {
		return fmt.Errorf("max_entry_bytes must be non-negative")
	}

	if c.RemoteTimeout < 0 {
		return fmt.Errorf("remote_timeout must be non-negative")
	}
	if c.ReconcileDelay < 0 || c.ReconcileDelay > time.Second {
		return fmt.Errorf("reconcile_delay must be between 0 and 1s")
	}

	if c.History.Enabled && c.DataDir == "" {
		return fmt.Errorf("data_dir is required when history is enabled")
	}

	return nil
}
