package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessro/paira/internal/daemon"
	"github.com/tessro/paira/internal/fingerprint"
	"github.com/tessro/paira/internal/logging"
)

var (
	hwidLocal     bool
	hwidVerbose   bool
	deviceLocal   bool
	deviceVerbose bool
)

var hwidCmd = &cobra.Command{
	Use:   "hwid",
	Short: "Print this machine's hardware ID",
	Long:  "Print the SHA-256 hardware ID used for licensing. By default the daemon resolves it; --local resolves it in this process.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if hwidLocal {
			if hwidVerbose {
				// Per-tier failures are logged at debug
				slog.SetDefault(logging.NewConsoleLogger(slog.LevelDebug))
			}
			return runHWIDLocal(cmd.Context(), os.Stdout, diagnostics(hwidVerbose), fingerprint.DefaultResolver(nil))
		}

		client, err := ConnectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		return runHWID(os.Stdout, client)
	},
}

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Print this machine's device name",
	Long:  "Print the human-readable device name. By default the daemon resolves it; --local resolves it in this process.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if deviceLocal {
			if deviceVerbose {
				slog.SetDefault(logging.NewConsoleLogger(slog.LevelDebug))
			}
			return runDeviceLocal(cmd.Context(), os.Stdout, diagnostics(deviceVerbose), fingerprint.DefaultNameResolver(nil))
		}

		client, err := ConnectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		return runDevice(os.Stdout, client)
	},
}

func runHWID(w io.Writer, client daemon.ShellClient) error {
	ident, err := client.Identity()
	if err != nil {
		return fmt.Errorf("hwid: %w", err)
	}
	printIdentity(w, ident.Hash, ident.Method)
	return nil
}

// diagnostics returns stderr when verbose output was requested.
func diagnostics(verbose bool) io.Writer {
	if verbose {
		return os.Stderr
	}
	return nil
}

// printTiers lists the resolution order on diag. A nil diag prints nothing.
func printTiers(diag io.Writer, methods []string) {
	if diag == nil {
		return
	}
	fmt.Fprintln(diag, dimStyle.Render("🤖 tiers: "+strings.Join(methods, ", ")))
}

func runHWIDLocal(ctx context.Context, w, diag io.Writer, resolver *fingerprint.Resolver) error {
	printTiers(diag, resolver.Methods())
	ident, err := resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("hwid: %w", err)
	}
	printIdentity(w, ident.Hash, ident.Method)
	return nil
}

func printIdentity(w io.Writer, hash, method string) {
	fmt.Fprintln(w, hash)
	if hwidVerbose {
		fmt.Fprintln(os.Stderr, dimStyle.Render("🤖 resolved via "+method))
	}
}

func runDeviceLocal(ctx context.Context, w, diag io.Writer, resolver *fingerprint.NameResolver) error {
	printTiers(diag, resolver.Methods())
	fmt.Fprintln(w, resolver.Resolve(ctx))
	return nil
}

func runDevice(w io.Writer, client daemon.ShellClient) error {
	dev, err := client.Device()
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	fmt.Fprintln(w, dev.Name)
	return nil
}

func init() {
	hwidCmd.Flags().BoolVar(&hwidLocal, "local", false, "resolve without the daemon")
	hwidCmd.Flags().BoolVarP(&hwidVerbose, "verbose", "v", false, "print which query produced the ID (with --local, also the tier order and each failed query)")
	deviceCmd.Flags().BoolVar(&deviceLocal, "local", false, "resolve without the daemon")
	deviceCmd.Flags().BoolVarP(&deviceVerbose, "verbose", "v", false, "with --local, print the tier order and each failed query")
	rootCmd.AddCommand(hwidCmd)
	rootCmd.AddCommand(deviceCmd)
}
