// Package config loads and validates the paira configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tessro/paira/internal/paths"
)

// EnvAPIBase overrides api.base_url.
const EnvAPIBase = "API_BASE"

// Defaults applied when a key is absent.
const (
	DefaultLogLevel      = "info"
	DefaultAPIBaseURL    = "https://api.paira.live"
	DefaultLicensePath   = "/api/licenses/validate"
	DefaultUpdatesPath   = "/api/updates/latest"
	DefaultAPITimeout    = 30 * time.Second
	DefaultStopTimeout   = 5 * time.Second
	DefaultHistorySize   = 1000
	DefaultUnbufferedEnv = "PYTHONUNBUFFERED=1"
)

// GlobalConfig represents the paira configuration file.
type GlobalConfig struct {
	// LogLevel is the daemon log level (debug, info, warn, error).
	LogLevel string `toml:"log_level"`

	Worker WorkerConfig `toml:"worker"`
	API    APIConfig    `toml:"api"`
}

// WorkerConfig controls how the worker process is launched.
type WorkerConfig struct {
	// Path is the worker executable. Defaults to the packaged worker under
	// the paira directory.
	Path string `toml:"path"`
	// WorkDir is the worker's working directory. Defaults to the directory
	// containing Path.
	WorkDir string `toml:"workdir"`
	// UnbufferedEnv is a KEY=VALUE entry that turns off output buffering.
	UnbufferedEnv string `toml:"unbuffered_env"`
	// Env holds extra KEY=VALUE entries for the worker environment.
	Env []string `toml:"env"`
	// StopTimeout is how long Stop waits before killing, e.g. "5s".
	StopTimeout string `toml:"stop_timeout"`
	// HistorySize is the number of output lines kept for late log clients.
	HistorySize int `toml:"history_size"`
}

// APIConfig configures the license and update service.
type APIConfig struct {
	BaseURL     string `toml:"base_url"`
	LicensePath string `toml:"license_path"`
	UpdatesPath string `toml:"updates_path"`
	Timeout     string `toml:"timeout"`
	// Token is the license token used when none is given on the command line.
	Token string `toml:"token"`
}

// GlobalConfigPath returns the path to the config file.
func GlobalConfigPath() (string, error) {
	return paths.ConfigPath()
}

// LoadGlobalConfig loads the configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	path, err := GlobalConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadGlobalConfigFromPath(path)
}

// LoadGlobalConfigFromPath loads the config from a specific path.
// Returns nil config and nil error if the file doesn't exist. Keys that do
// not map to a setting are rejected so typos don't pass silently.
func LoadGlobalConfigFromPath(path string) (*GlobalConfig, error) {
	var cfg GlobalConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, &ValidationError{
			Field:   undecoded[0].String(),
			Message: "unknown key",
			Err:     ErrUnknownKey,
		}
	}
	return &cfg, nil
}

// GetLogLevel returns the configured log level or the default.
func (c *GlobalConfig) GetLogLevel() string {
	if c != nil && c.LogLevel != "" {
		return c.LogLevel
	}
	return DefaultLogLevel
}

// GetWorkerPath returns the worker executable path.
func (c *GlobalConfig) GetWorkerPath() (string, error) {
	if c != nil && c.Worker.Path != "" {
		return expandHome(c.Worker.Path)
	}
	return paths.WorkerExecutable()
}

// GetWorkerDir returns the configured working directory, or empty to run the
// worker next to its executable.
func (c *GlobalConfig) GetWorkerDir() (string, error) {
	if c != nil && c.Worker.WorkDir != "" {
		return expandHome(c.Worker.WorkDir)
	}
	return "", nil
}

// GetUnbufferedEnv returns the KEY=VALUE entry that disables buffering.
func (c *GlobalConfig) GetUnbufferedEnv() string {
	if c != nil && c.Worker.UnbufferedEnv != "" {
		return c.Worker.UnbufferedEnv
	}
	return DefaultUnbufferedEnv
}

// GetWorkerEnv returns the extra environment entries for the worker.
func (c *GlobalConfig) GetWorkerEnv() []string {
	if c == nil {
		return nil
	}
	return c.Worker.Env
}

// GetStopTimeout returns the stop timeout. Invalid values fall back to the
// default; Validate reports them.
func (c *GlobalConfig) GetStopTimeout() time.Duration {
	if c != nil && c.Worker.StopTimeout != "" {
		if d, err := time.ParseDuration(c.Worker.StopTimeout); err == nil && d > 0 {
			return d
		}
	}
	return DefaultStopTimeout
}

// GetHistorySize returns the number of output lines to retain.
func (c *GlobalConfig) GetHistorySize() int {
	if c != nil && c.Worker.HistorySize > 0 {
		return c.Worker.HistorySize
	}
	return DefaultHistorySize
}

// GetAPIBaseURL returns the service base URL. API_BASE takes precedence over
// the config file.
func (c *GlobalConfig) GetAPIBaseURL() string {
	if v := os.Getenv(EnvAPIBase); v != "" {
		return strings.TrimRight(v, "/")
	}
	if c != nil && c.API.BaseURL != "" {
		return strings.TrimRight(c.API.BaseURL, "/")
	}
	return DefaultAPIBaseURL
}

// GetLicensePath returns the license validation endpoint path.
func (c *GlobalConfig) GetLicensePath() string {
	if c != nil && c.API.LicensePath != "" {
		return c.API.LicensePath
	}
	return DefaultLicensePath
}

// GetUpdatesPath returns the update check endpoint path.
func (c *GlobalConfig) GetUpdatesPath() string {
	if c != nil && c.API.UpdatesPath != "" {
		return c.API.UpdatesPath
	}
	return DefaultUpdatesPath
}

// GetAPITimeout returns the HTTP timeout for service calls.
func (c *GlobalConfig) GetAPITimeout() time.Duration {
	if c != nil && c.API.Timeout != "" {
		if d, err := time.ParseDuration(c.API.Timeout); err == nil && d > 0 {
			return d
		}
	}
	return DefaultAPITimeout
}

// GetLicenseToken returns the configured license token, if any.
func (c *GlobalConfig) GetLicenseToken() string {
	if c == nil {
		return ""
	}
	return c.API.Token
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, rest), nil
}
