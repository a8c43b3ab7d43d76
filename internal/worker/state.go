package worker

import "time"

// Status is the supervisor's bookkeeping view of the worker.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
)

// slot is the state of the single process slot.
type slot int

const (
	slotEmpty slot = iota
	// slotStarting reserves the slot while a spawn is in flight so a second
	// Start cannot launch another process.
	slotStarting
	slotRunning
)

// Info describes the tracked worker for display. Zero fields mean stopped.
type Info struct {
	Status    Status    `json:"status"`
	PID       int       `json:"pid,omitempty"`
	Token     string    `json:"token,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
}
