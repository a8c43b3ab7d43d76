//go:build unix

package worker

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminate asks the process to exit.
func terminate(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}
