package worker

import (
	"errors"
	"fmt"
)

// Errors returned by Supervisor operations.
var (
	ErrAlreadyRunning = errors.New("worker is already running")
	ErrNotRunning     = errors.New("worker is not running")
)

// SpawnError reports that the worker could not be launched. The supervisor
// stays stopped when Start returns one.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start worker %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
