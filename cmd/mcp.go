package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/zipsite/internal/blob"
	mcpserver "github.com/ziadkadry99/zipsite/internal/mcp"
	"github.com/ziadkadry99/zipsite/internal/session"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [archive-or-url]",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing tools to load an archive and inspect, resolve and read its files.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		manager := session.NewManager(blob.NewStore(), sessionOptions(cfg, nil))
		if len(args) == 1 {
			src, err := openSource(args[0], cfg)
			if err != nil {
				return err
			}
			if _, err := manager.Load(context.Background(), src); err != nil {
				return fmt.Errorf("loading %s: %w", src.Name(), err)
			}
		}

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "zipsite MCP server started on stdio (state=%s)\n", manager.State())

		srv := mcpserver.NewServer(manager, mcpserver.Options{
			MaxArchiveBytes: cfg.MaxArchiveBytes,
			RemoteTimeout:   cfg.RemoteTimeout,
		})
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
