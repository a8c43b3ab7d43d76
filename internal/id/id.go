// Package id generates identifiers for worker runs.
package id

import "github.com/google/uuid"

// NewRunID returns a random identifier for one worker run.
func NewRunID() string {
	return uuid.NewString()
}

// Short returns the first eight characters of a run ID, for display.
func Short(runID string) string {
	if len(runID) <= 8 {
		return runID
	}
	return runID[:8]
}
