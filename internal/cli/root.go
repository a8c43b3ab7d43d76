// Package cli implements the paira command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tessro/paira/internal/paths"
)

// pairaDir is the global --paira-dir flag value.
var pairaDir string

var rootCmd = &cobra.Command{
	Use:   "paira",
	Short: "Worker supervisor shell",
	Long:  "paira runs the bot worker in the background, relays its output and reports this machine's hardware ID.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set PAIRA_DIR environment variable if --paira-dir is provided.
		// This allows all path helpers to use the override.
		if pairaDir != "" {
			if err := os.Setenv(paths.EnvPairaDir, pairaDir); err != nil {
				return err
			}
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&pairaDir, "paira-dir", "", "base directory for paira data (overrides ~/.paira)")
}

func Execute() error {
	return rootCmd.Execute()
}
