package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/zipsite/internal/blob"
	"github.com/ziadkadry99/zipsite/internal/progress"
	"github.com/ziadkadry99/zipsite/internal/server"
	"github.com/ziadkadry99/zipsite/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve [archive-or-url]",
	Short: "Serve an archived static site in the browser",
	Long: `Starts the local zipsite server. When an archive path or URL is given it
is loaded immediately; otherwise open the page and upload one. The server
keeps at most one site loaded at a time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().Bool("no-browser", false, "do not open the browser")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	noBrowser, _ := cmd.Flags().GetBool("no-browser")

	database, hist, err := openHistory(cfg)
	if err != nil {
		return err
	}
	var recorder session.Recorder
	if hist != nil {
		defer database.Close()
		recorder = hist
		if cfg.History.Retention > 0 {
			if n, err := hist.DeleteBefore(context.Background(), time.Now().Add(-cfg.History.Retention)); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: pruning history: %v\n", err)
			} else if n > 0 && verbose {
				fmt.Fprintf(os.Stderr, "Pruned %d history entries\n", n)
			}
		}
	}

	manager := session.NewManager(blob.NewStore(), sessionOptions(cfg, recorder))
	manager.Subscribe(progress.Observe(progress.NewReporter()))

	srv := server.New(server.Config{
		Port:            cfg.Port,
		AllowAll:        cfg.AllowAllOrigins,
		MaxArchiveBytes: cfg.MaxArchiveBytes,
		RemoteTimeout:   cfg.RemoteTimeout,
	}, manager, hist)
	if err := srv.Listen(); err != nil {
		return err
	}

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Reset()
		srv.Shutdown(shutdownCtx)
	}()

	if len(args) == 1 {
		src, err := openSource(args[0], cfg)
		if err != nil {
			return err
		}
		go func() {
			if _, err := manager.Load(ctx, src); err != nil {
				fmt.Fprintf(os.Stderr, "Error: loading %s: %v\n", src.Name(), err)
			}
		}()
	}

	fmt.Fprintf(os.Stderr, "zipsite %s serving on %s\n", Version, srv.URL())
	if hist != nil {
		fmt.Fprintf(os.Stderr, "  History: %s\n", database.Path())
	}
	if cfg.OpenBrowser && !noBrowser {
		openBrowser(srv.URL())
	}

	return srv.Serve()
}
