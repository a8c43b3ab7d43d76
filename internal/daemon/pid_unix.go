//go:build unix

package daemon

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsProcessRunning checks if a process with the given PID exists.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	// EPERM means the process exists but belongs to someone else
	return err == nil || errors.Is(err, unix.EPERM)
}
