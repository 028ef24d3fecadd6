package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/zipsite/internal/blob"
	"github.com/ziadkadry99/zipsite/internal/progress"
	"github.com/ziadkadry99/zipsite/internal/session"
	"github.com/ziadkadry99/zipsite/internal/vfs"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive-or-url>",
	Short: "Load an archive and print its virtual file table",
	Long:  `Loads an archive exactly as serve would and prints the entry document, the stripped prefix and every file with its MIME type and size, without starting a server.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().Bool("json", false, "print the table as JSON")
	rootCmd.AddCommand(inspectCmd)
}

type inspectReport struct {
	Source    string        `json:"source"`
	EntryPath string        `json:"entry_path"`
	Prefix    string        `json:"prefix"`
	Resources []*vfs.Record `json:"resources"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := openSource(args[0], cfg)
	if err != nil {
		return err
	}

	manager := session.NewManager(blob.NewStore(), sessionOptions(cfg, nil))
	manager.Subscribe(progress.Observe(progress.NewReporter()))
	sess, err := manager.Load(context.Background(), src)
	if err != nil {
		return fmt.Errorf("loading %s: %w", src.Name(), err)
	}
	defer manager.Reset()

	table := sess.Table()
	report := inspectReport{
		Source:    sess.Source,
		EntryPath: table.EntryPath,
		Prefix:    table.Prefix,
		Resources: table.Records(),
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("Source: %s\n", report.Source)
	fmt.Printf("Entry:  %s\n", report.EntryPath)
	if report.Prefix != "" {
		fmt.Printf("Prefix: %s\n", report.Prefix)
	}
	fmt.Printf("Files:  %d\n\n", len(report.Resources))

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tTYPE\tSIZE")
	for _, rec := range report.Resources {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", rec.Path, rec.MIMEType, rec.Size)
	}
	return tw.Flush()
}
