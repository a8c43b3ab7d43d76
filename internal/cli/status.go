package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/paira/internal/daemon"
	"github.com/tessro/paira/internal/id"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and worker status",
	Long:  "Display the status of the paira daemon and the worker it supervises.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ConnectClient()
		if errors.Is(err, ErrDaemonNotRunning) {
			fmt.Println("🤖 paira daemon is not running")
			return nil
		}
		if err != nil {
			return err
		}
		defer client.Close()

		return runStatus(os.Stdout, client)
	},
}

func runStatus(w io.Writer, client daemon.ShellClient) error {
	status, err := client.Status()
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	uptime := time.Since(status.Daemon.StartedAt).Truncate(time.Second)
	fmt.Fprintf(w, "🤖 paira daemon running (pid %d, uptime %s, version %s)\n",
		status.Daemon.PID, uptime, status.Daemon.Version)

	wk := status.Worker
	fmt.Fprintf(w, "   Worker: %s", stateBadge(wk.State))
	if wk.State == "running" {
		workerUptime := time.Since(wk.StartedAt).Truncate(time.Second)
		fmt.Fprintf(w, " (pid %d, uptime %s, run %s)", wk.PID, workerUptime, id.Short(wk.Token))
	}
	fmt.Fprintln(w)
	if wk.Path != "" {
		fmt.Fprintf(w, "   Path:   %s\n", dimStyle.Render(wk.Path))
	}
	if h := status.History; h.Capacity > 0 {
		fmt.Fprintf(w, "   Logs:   %d of %d lines buffered\n", h.Lines, h.Capacity)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
