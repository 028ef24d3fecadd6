package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8765 {
		t.Errorf("expected default port 8765, got %d", cfg.Port)
	}
	if cfg.DecodeErrors != DecodeAbort {
		t.Errorf("expected default decode_errors %q, got %q", DecodeAbort, cfg.DecodeErrors)
	}
	if cfg.ReconcileDelay != 16*time.Millisecond {
		t.Errorf("expected default reconcile_delay 16ms, got %v", cfg.ReconcileDelay)
	}
	if len(cfg.Exclude) == 0 {
		t.Error("expected default excludes")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.zipsite.yml")

	original := DefaultConfig()
	original.Port = 9090
	original.OpenBrowser = false
	original.DecodeErrors = DecodeSkip
	original.Include = []string{"**/*.html", "assets/**"}
	original.RemoteTimeout = 5 * time.Second
	original.ReconcileDelay = 40 * time.Millisecond
	original.History.Enabled = false

	// Save.
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load back.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify round-trip.
	if loaded.Port != original.Port {
		t.Errorf("port: got %d, want %d", loaded.Port, original.Port)
	}
	if loaded.OpenBrowser {
		t.Error("open_browser: got true, want false")
	}
	if loaded.DecodeErrors != DecodeSkip {
		t.Errorf("decode_errors: got %q, want %q", loaded.DecodeErrors, DecodeSkip)
	}
	if loaded.RemoteTimeout != original.RemoteTimeout {
		t.Errorf("remote_timeout: got %v, want %v", loaded.RemoteTimeout, original.RemoteTimeout)
	}
	if loaded.ReconcileDelay != original.ReconcileDelay {
		t.Errorf("reconcile_delay: got %v, want %v", loaded.ReconcileDelay, original.ReconcileDelay)
	}
	if loaded.History.Enabled {
		t.Error("history.enabled: got true, want false")
	}
	if len(loaded.Include) != len(original.Include) {
		t.Errorf("include length: got %d, want %d", len(loaded.Include), len(original.Include))
	}
	for i, v := range loaded.Include {
		if v != original.Include[i] {
			t.Errorf("include[%d]: got %q, want %q", i, v, original.Include[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Port != 8765 {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Override via env vars.
	os.Setenv("ZIPSITE_PORT", "9999")
	defer os.Unsetenv("ZIPSITE_PORT")
	os.Setenv("ZIPSITE_DECODE_ERRORS", "skip")
	defer os.Unsetenv("ZIPSITE_DECODE_ERRORS")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Port != 9999 {
		t.Errorf("env override failed: got %d, want 9999", loaded.Port)
	}
	if loaded.DecodeErrors != DecodeSkip {
		t.Errorf("env override failed: got %q, want %q", loaded.DecodeErrors, DecodeSkip)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 70000 }},
		{"decode policy", func(c *Config) { c.DecodeErrors = "retry" }},
		{"glob", func(c *Config) { c.Exclude = append(c.Exclude, "[a-") }},
		{"archive limit", func(c *Config) { c.MaxArchiveBytes = -1 }},
		{"entry limit", func(c *Config) { c.MaxEntryBytes = -1 }},
		{"timeout", func(c *Config) { c.RemoteTimeout = -time.Second }},
		{"delay", func(c *Config) { c.ReconcileDelay = 2 * time.Second }},
		{"data dir", func(c *Config) { c.DataDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/zs"
	if got := cfg.DatabasePath(); got != filepath.Join("/tmp/zs", "zipsite.db") {
		t.Errorf("DatabasePath = %q", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"**/*.map", []string{"**/*.map"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
			}
		}
	}
}
