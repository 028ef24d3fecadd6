package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/zipsite/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or prune the session history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent session events",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := historyStore()
		if err != nil {
			return err
		}
		defer closeDB()

		limit, _ := cmd.Flags().GetInt("limit")
		sessionID, _ := cmd.Flags().GetString("session")
		entries, err := store.Query(context.Background(), history.QueryFilter{SessionID: sessionID, Limit: limit})
		if err != nil {
			return fmt.Errorf("querying history: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSESSION\tEVENT\tSOURCE\tFILES\tDETAIL")
		for _, e := range entries {
			detail := e.EntryPath
			switch {
			case e.Error != "":
				detail = e.Error
			case e.Released > 0:
				detail = fmt.Sprintf("released %d", e.Released)
			}
			fmt.Fprintf(tw, "%s\t%.8s\t%s\t%s\t%d\t%s\n",
				e.Timestamp.Local().Format(time.DateTime), e.SessionID, e.Event, e.Source, e.Resources, detail)
		}
		return tw.Flush()
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete history older than a duration",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := historyStore()
		if err != nil {
			return err
		}
		defer closeDB()

		olderThan, _ := cmd.Flags().GetDuration("older-than")
		n, err := store.DeleteBefore(context.Background(), time.Now().Add(-olderThan))
		if err != nil {
			return fmt.Errorf("pruning history: %w", err)
		}
		fmt.Printf("Deleted %d entries\n", n)
		return nil
	},
}

// historyStore opens the configured history database.
func historyStore() (*history.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, store, err := openHistory(cfg)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, fmt.Errorf("history is disabled in %s", cfgFile)
	}
	return store, func() { database.Close() }, nil
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of events")
	historyListCmd.Flags().String("session", "", "only events of this session")
	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete entries older than this")
	historyCmd.AddCommand(historyListCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
