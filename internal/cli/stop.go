package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessro/paira/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the worker",
	Long:  "Terminate the worker. It gets a grace period to exit before it is killed.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ConnectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		return runStop(os.Stdout, client)
	},
}

func runStop(w io.Writer, client daemon.ShellClient) error {
	if err := client.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}

	fmt.Fprintln(w, "🤖 Worker stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
