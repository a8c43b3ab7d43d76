package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/paira/internal/config"
	"github.com/tessro/paira/internal/daemon"
	"github.com/tessro/paira/internal/logging"
	"github.com/tessro/paira/internal/supervisor"
	"github.com/tessro/paira/internal/worker"
)

// ErrDaemonAlreadyRunning is returned by server start when a daemon already
// answers on the socket.
var ErrDaemonAlreadyRunning = errors.New("daemon is already running")

// daemonStartTimeout bounds how long server start waits for a background
// daemon to accept connections.
const daemonStartTimeout = 5 * time.Second

// shutdownGrace lets the shutdown response reach the client before the
// server closes its connections.
const shutdownGrace = 100 * time.Millisecond

var (
	serverForeground bool
	serverDetached   bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the paira daemon server",
	Long:  "Commands for managing the paira daemon server lifecycle.",
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the paira daemon server",
	Long:  "Start the paira daemon. It runs in the background unless --foreground is given.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serverForeground || serverDetached {
			return runDaemon(serverForeground)
		}
		return startBackground()
	},
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the paira daemon server",
	Long:  "Stop the running paira daemon server. This will also stop the worker.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ConnectClient()
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Shutdown(); err != nil {
			return fmt.Errorf("shutdown daemon: %w", err)
		}

		fmt.Println("🤖 paira daemon stopped")
		return nil
	},
}

// startBackground re-executes paira as a detached daemon and waits for its
// socket to come up.
func startBackground() error {
	if IsDaemonRunning() {
		return ErrDaemonAlreadyRunning
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate paira executable: %w", err)
	}

	args := []string{"server", "start", "--detached"}
	if pairaDir != "" {
		args = append(args, "--paira-dir", pairaDir)
	}
	cmd := exec.Command(exe, args...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// The daemon outlives this process; don't keep a handle to it
	_ = cmd.Process.Release()

	deadline := time.Now().Add(daemonStartTimeout)
	for time.Now().Before(deadline) {
		if IsDaemonRunning() {
			fmt.Printf("🤖 paira daemon started (pid %d)\n", pid)
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not start within %s; see %s", daemonStartTimeout, logging.DefaultLogPath())
}

// runDaemon serves requests until a signal or a shutdown request arrives.
func runDaemon(foreground bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.GetLogLevel())
	var cleanup func()
	if foreground {
		cleanup, err = logging.SetupMulti("", os.Stderr, level)
	} else {
		cleanup, err = logging.Setup("", level)
	}
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()

	// The PID file is claimed before the socket so a second daemon can't
	// unlink a live daemon's socket
	pidPath := daemon.DefaultPIDPath()
	if err := daemon.AcquirePID(pidPath); err != nil {
		return err
	}
	defer func() { _ = daemon.RemovePID(pidPath) }()

	sup, err := newSupervisor(cfg)
	if err != nil {
		return err
	}

	srv := daemon.NewServer(getSocketPath(), sup)
	sup.SetServer(srv)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	slog.Info("paira daemon running", "pid", os.Getpid(), "version", supervisor.Version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		slog.Info("signal received", "signal", sig.String())
	case <-sup.ShutdownCh():
		slog.Info("shutdown requested")
		time.Sleep(shutdownGrace)
	}

	if err := sup.Close(); err != nil {
		slog.Warn("stop worker failed", "error", err)
	}
	return srv.Stop()
}

// newSupervisor wires the daemon handler from configuration.
func newSupervisor(cfg *config.GlobalConfig) (*supervisor.Supervisor, error) {
	path, err := cfg.GetWorkerPath()
	if err != nil {
		return nil, fmt.Errorf("resolve worker path: %w", err)
	}
	workDir, err := cfg.GetWorkerDir()
	if err != nil {
		return nil, fmt.Errorf("resolve worker directory: %w", err)
	}

	return supervisor.New(supervisor.Config{
		Worker: worker.Config{
			Path:          path,
			WorkDir:       workDir,
			UnbufferedEnv: cfg.GetUnbufferedEnv(),
			Env:           cfg.GetWorkerEnv(),
			StopTimeout:   cfg.GetStopTimeout(),
		},
		HistorySize:  cfg.GetHistorySize(),
		License:      newLicenseClient(cfg),
		LicenseToken: cfg.GetLicenseToken(),
	}), nil
}

func init() {
	serverStartCmd.Flags().BoolVar(&serverForeground, "foreground", false, "run in the foreground and log to stderr")
	serverStartCmd.Flags().BoolVar(&serverDetached, "detached", false, "run as the background daemon")
	_ = serverStartCmd.Flags().MarkHidden("detached")
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	rootCmd.AddCommand(serverCmd)
}
