// Package paths provides a single source of truth for paira file paths.
// All path helpers honor environment variable overrides for isolated testing.
//
// Path resolution precedence:
//  1. Specific env vars (PAIRA_SOCKET_PATH, PAIRA_PID_PATH) take highest priority
//  2. PAIRA_DIR sets the base directory (derives socket/pid/log/config/worker)
//  3. Default behavior (~/.paira, ~/.config/paira) when no env vars are set
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// Environment variable names for path overrides.
const (
	// EnvPairaDir is the base directory override (e.g., /tmp/paira-e2e).
	EnvPairaDir = "PAIRA_DIR"

	// EnvSocketPath overrides the daemon socket path directly.
	EnvSocketPath = "PAIRA_SOCKET_PATH"

	// EnvPIDPath overrides the PID file path directly.
	EnvPIDPath = "PAIRA_PID_PATH"
)

// WorkerDirName is the directory holding the packaged worker and its
// dependencies.
const WorkerDirName = "bot.dist"

// BaseDir returns the paira base directory (~/.paira by default).
// Honors PAIRA_DIR.
func BaseDir() (string, error) {
	if dir := os.Getenv(EnvPairaDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".paira"), nil
}

// ConfigDir returns the paira config directory (~/.config/paira by default).
// When PAIRA_DIR is set, returns PAIRA_DIR/config instead.
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvPairaDir); dir != "" {
		return filepath.Join(dir, "config"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "paira"), nil
}

// ConfigPath returns the path to the global config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// SocketPath returns the daemon socket path.
// Precedence: PAIRA_SOCKET_PATH > PAIRA_DIR/paira.sock > ~/.paira/paira.sock
func SocketPath() string {
	if path := os.Getenv(EnvSocketPath); path != "" {
		return path
	}
	base, err := BaseDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "paira.sock")
	}
	return filepath.Join(base, "paira.sock")
}

// PIDPath returns the daemon PID file path.
// Precedence: PAIRA_PID_PATH > PAIRA_DIR/paira.pid > ~/.paira/paira.pid
func PIDPath() string {
	if path := os.Getenv(EnvPIDPath); path != "" {
		return path
	}
	base, err := BaseDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "paira.pid")
	}
	return filepath.Join(base, "paira.pid")
}

// LogPath returns the daemon log file path (~/.paira/paira.log by default).
func LogPath() string {
	base, err := BaseDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "paira.log")
	}
	return filepath.Join(base, "paira.log")
}

// WorkerDir returns the default worker directory (~/.paira/bot.dist).
func WorkerDir() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, WorkerDirName), nil
}

// WorkerExecutable returns the default worker executable path inside
// WorkerDir. The name carries the target triple the worker is built for.
func WorkerExecutable() (string, error) {
	dir, err := WorkerDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, workerBinaryName(runtime.GOOS, runtime.GOARCH)), nil
}

// workerBinaryName maps a Go platform to the packaged worker's file name.
func workerBinaryName(goos, goarch string) string {
	arch := "x86_64"
	if goarch == "arm64" {
		arch = "aarch64"
	}
	switch goos {
	case "windows":
		return "bot-" + arch + "-pc-windows-msvc.exe"
	case "darwin":
		return "bot-" + arch + "-apple-darwin"
	default:
		return "bot-" + arch + "-unknown-linux-gnu"
	}
}
