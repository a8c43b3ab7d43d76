//go:build windows

package worker

import "os"

// terminate ends the process. Windows has no portable SIGTERM for console
// processes, so this is an immediate kill.
func terminate(p *os.Process) error {
	return p.Kill()
}
