package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessro/paira/internal/daemon"
	"github.com/tessro/paira/internal/id"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the worker",
	Long:  "Launch the worker process under the daemon. Fails if a worker is already running.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ConnectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		return runStart(os.Stdout, client)
	},
}

func runStart(w io.Writer, client daemon.ShellClient) error {
	resp, err := client.Start()
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	fmt.Fprintf(w, "🤖 Worker started (pid %d, run %s)\n", resp.Worker.PID, id.Short(resp.Worker.Token))
	return nil
}

func init() {
	rootCmd.AddCommand(startCmd)
}
