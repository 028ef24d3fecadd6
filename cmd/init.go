package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/zipsite/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize zipsite configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure zipsite and writes a .zipsite.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.RunWizard(cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Configuration written to %s\n", cfgFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
