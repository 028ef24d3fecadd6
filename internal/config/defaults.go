package config

import (
	"time"

	"github.com/ziadkadry99/zipsite/internal/archive"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".zipsite.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            8765,
		OpenBrowser:     true,
		Include:         []string{"**"},
		Exclude:         append([]string(nil), archive.DefaultExcludes...),
		DecodeErrors:    DecodeAbort,
		MaxArchiveBytes: 512 << 20,
		MaxEntryBytes:   64 << 20,
		RemoteTimeout:   60 * time.Second,
		ReconcileDelay:  16 * time.Millisecond,
		DataDir:         ".zipsite",
		History: HistoryConfig{
			Enabled:   true,
			Retention: 30 * 24 * time.Hour,
		},
	}
}
