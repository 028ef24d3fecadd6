package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ziadkadry99/zipsite/internal/archive"
	"github.com/ziadkadry99/zipsite/internal/config"
	"github.com/ziadkadry99/zipsite/internal/db"
	"github.com/ziadkadry99/zipsite/internal/history"
	"github.com/ziadkadry99/zipsite/internal/session"
	"github.com/ziadkadry99/zipsite/internal/vfs"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `zipsite init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// sessionOptions maps the config onto session load options.
func sessionOptions(cfg *config.Config, recorder session.Recorder) session.Options {
	return session.Options{
		Filter:         archive.Filter{Include: cfg.Include, Exclude: cfg.Exclude},
		DecodeErrors:   vfs.DecodePolicy(cfg.DecodeErrors),
		MaxEntryBytes:  cfg.MaxEntryBytes,
		ReconcileDelay: cfg.ReconcileDelay,
		Recorder:       recorder,
	}
}

// openHistory opens the history database when history is enabled. Both
// return values are nil when it is disabled.
func openHistory(cfg *config.Config) (*db.DB, *history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil, nil
	}
	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening history database: %w", err)
	}
	return database, history.NewStore(database), nil
}

// openSource turns a CLI argument into an archive source: http(s) URLs are
// fetched lazily, anything else is read as a local file.
func openSource(arg string, cfg *config.Config) (archive.Source, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		client := &http.Client{Timeout: cfg.RemoteTimeout}
		return archive.Remote(client, arg, cfg.MaxArchiveBytes), nil
	}
	return archive.FromFile(arg, cfg.MaxArchiveBytes)
}

// openBrowser opens url in the default browser.
func openBrowser(url string) {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		c = exec.Command("open", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	if err := c.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Could not open browser: %v\nOpen %s manually.\n", err, url)
	}
}
