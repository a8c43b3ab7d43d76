package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tessro/paira/internal/paths"
)

// RunningError is returned by AcquirePID when a live daemon owns the PID
// file.
type RunningError struct {
	PID int
}

func (e *RunningError) Error() string {
	return fmt.Sprintf("daemon is already running (pid %d)", e.PID)
}

// DefaultPIDPath returns the default PID file path.
func DefaultPIDPath() string {
	return paths.PIDPath()
}

// AcquirePID claims the PID file for the current process. The file is
// created exclusively, so two daemons racing to start cannot both win. A file
// left behind by a dead process is replaced; one owned by a live process
// yields a *RunningError.
func AcquirePID(path string) error {
	if path == "" {
		path = DefaultPIDPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}

	// One retry: the second attempt follows removal of a stale file
	for range 2 {
		err := createPIDFile(path)
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}

		pid, err := ReadPID(path)
		if err == nil && pid != os.Getpid() && IsProcessRunning(pid) {
			return &RunningError{PID: pid}
		}
		if err := RemovePID(path); err != nil {
			return err
		}
	}
	return fmt.Errorf("create pid file: %w", os.ErrExist)
}

func createPIDFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return os.ErrExist
		}
		return fmt.Errorf("create pid file: %w", err)
	}

	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if err := errors.Join(werr, f.Close()); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// ReadPID reads the process ID from the PID file.
// A missing file is reported with an error satisfying os.IsNotExist.
func ReadPID(path string) (int, error) {
	if path == "" {
		path = DefaultPIDPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("parse pid file %s: invalid content %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// RemovePID removes the PID file. A missing file is not an error.
func RemovePID(path string) error {
	if path == "" {
		path = DefaultPIDPath()
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// IsDaemonRunning reads the PID file and reports whether that process is
// alive.
func IsDaemonRunning(pidPath string) (bool, int) {
	pid, err := ReadPID(pidPath)
	if err != nil || !IsProcessRunning(pid) {
		return false, 0
	}
	return true, pid
}
