package config

import (
	"path/filepath"
	"time"
)

// DecodePolicy decides what happens when one archive entry cannot be decoded.
type DecodePolicy string

const (
	DecodeAbort DecodePolicy = "abort"
	DecodeSkip  DecodePolicy = "skip"
)

// Config is the top-level zipsite configuration, corresponding to .zipsite.yml.
type Config struct {
	Port            int           `yaml:"port" koanf:"port"`
	OpenBrowser     bool          `yaml:"open_browser" koanf:"open_browser"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	Include         []string      `yaml:"include" koanf:"include"`
	Exclude         []string      `yaml:"exclude" koanf:"exclude"`
	DecodeErrors    DecodePolicy  `yaml:"decode_errors" koanf:"decode_errors"`
	MaxArchiveBytes int64         `yaml:"max_archive_bytes" koanf:"max_archive_bytes"`
	MaxEntryBytes   int64         `yaml:"max_entry_bytes" koanf:"max_entry_bytes"`
	RemoteTimeout   time.Duration `yaml:"remote_timeout" koanf:"remote_timeout"`
	ReconcileDelay  time.Duration `yaml:"reconcile_delay" koanf:"reconcile_delay"`
	DataDir         string        `yaml:"data_dir" koanf:"data_dir"`
	History         HistoryConfig `yaml:"history" koanf:"history"`
}

// HistoryConfig controls the session history database.
type HistoryConfig struct {
	Enabled   bool          `yaml:"enabled" koanf:"enabled"`
	Retention time.Duration `yaml:"retention" koanf:"retention"`
}

// DatabasePath returns the history database location inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "zipsite.db")
}
