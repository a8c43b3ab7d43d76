// Package logging provides slog-based logging for the paira daemon and CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/term"

	"github.com/tessro/paira/internal/paths"
)

// DefaultLogPath returns the default log file path (~/.paira/paira.log).
func DefaultLogPath() string {
	return paths.LogPath()
}

// ParseLevel maps a config log_level to a slog.Level. Unknown names fall
// back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup points the default slog logger at a JSON log file (DefaultLogPath
// when path is empty). The returned cleanup closes the file.
func Setup(path string, level slog.Level) (cleanup func(), err error) {
	return setup(path, nil, level)
}

// SetupMulti is Setup with every record also copied to extra. The daemon
// uses it for --foreground so the log shows up in the terminal.
func SetupMulti(path string, extra io.Writer, level slog.Level) (cleanup func(), err error) {
	return setup(path, extra, level)
}

func setup(path string, extra io.Writer, level slog.Level) (func(), error) {
	f, err := openLogFile(path)
	if err != nil {
		return nil, err
	}

	var w io.Writer = f
	if extra != nil {
		w = io.MultiWriter(f, extra)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))

	return func() { _ = f.Close() }, nil
}

// NewConsoleLogger creates a logger for CLI commands that writes to stderr.
// When stderr is a terminal it uses the text handler for human-readable
// output; when piped it uses JSON.
func NewConsoleLogger(level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}


// openLogFile opens path for appending, creating it and its directory.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		path = DefaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

// LogPanic recovers a panic in the calling goroutine and logs it with a
// stack trace. It must be deferred directly:
//
//	defer logging.LogPanic("worker-pump", nil)
//
// onRecover, when set, runs after logging.
func LogPanic(name string, onRecover func(any)) {
	if r := recover(); r != nil {
		slog.Error("panic recovered",
			"goroutine", name,
			"panic", r,
			"stack", string(captureStack()),
		)
		if onRecover != nil {
			onRecover(r)
		}
	}
}

// captureStack returns the current goroutine's stack trace.
func captureStack() []byte {
	buf := make([]byte, 4096)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, len(buf)*2)
	}
}
