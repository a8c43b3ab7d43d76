package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tessro/paira/internal/daemon"
	"github.com/tessro/paira/internal/id"
)

var (
	logsLimit   int
	logsFollow  bool
	logsSources []string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show worker output",
	Long:  "Print recent worker output. With --follow, keep streaming new lines until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, src := range logsSources {
			if src != "stdout" && src != "stderr" {
				return fmt.Errorf("unknown source %q (want stdout or stderr)", src)
			}
		}

		client, err := ConnectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		done := make(chan struct{})
		go func() {
			<-sigCh
			close(done)
		}()

		opts := logsOptions{
			limit:   logsLimit,
			follow:  logsFollow,
			sources: logsSources,
			width:   terminalWidth(),
		}
		return runLogs(os.Stdout, client, opts, done)
	},
}

type logsOptions struct {
	limit   int
	follow  bool
	sources []string // empty = all
	width   int      // 0 = no wrapping
}

func (o logsOptions) wants(source string) bool {
	return len(o.sources) == 0 || slices.Contains(o.sources, source)
}

// runLogs prints the history backfill and, when following, live events until
// done is closed or the daemon goes away.
func runLogs(w io.Writer, client daemon.ShellClient, opts logsOptions, done <-chan struct{}) error {
	resp, err := client.Logs(opts.limit)
	if err != nil {
		return fmt.Errorf("logs: %w", err)
	}
	for _, line := range resp.Lines {
		if opts.wants(line.Source) {
			fmt.Fprintln(w, formatLogLine(line, opts.width))
		}
	}

	if !opts.follow {
		return nil
	}

	events, err := client.StreamEvents(opts.sources)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	defer client.StopEventStream()

	for {
		select {
		case <-done:
			return nil
		case result, ok := <-events:
			if !ok {
				return nil
			}
			if result.Err != nil {
				fmt.Fprintln(w, "🤖 Connection closed")
				return nil
			}
			displayEvent(w, result.Event, opts.width)
		}
	}
}

func displayEvent(w io.Writer, event *daemon.StreamEvent, width int) {
	switch event.Type {
	case "log":
		fmt.Fprintln(w, formatLogLine(daemon.LogLine{Source: event.Source, Text: event.Data}, width))
	case "state":
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("🤖 Worker %s (run %s)", event.State, id.Short(event.Token))))
	default:
		fmt.Fprintf(w, "🤖 %s: %s\n", event.Type, event.Data)
	}
}

func init() {
	logsCmd.Flags().IntVarP(&logsLimit, "lines", "n", 0, "number of recent lines to show (0 = all retained)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep streaming new output")
	logsCmd.Flags().StringSliceVar(&logsSources, "source", nil, "only show these streams (stdout, stderr)")
	rootCmd.AddCommand(logsCmd)
}
