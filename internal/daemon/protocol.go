// Package daemon provides the paira daemon server and IPC protocol.
package daemon

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of IPC message.
type MessageType string

const (
	// Server management
	MsgPing     MessageType = "ping"
	MsgShutdown MessageType = "shutdown"

	// Worker control
	MsgStart  MessageType = "start"
	MsgStop   MessageType = "stop"
	MsgStatus MessageType = "status"

	// Machine identity
	MsgIdentity MessageType = "identity"
	MsgDevice   MessageType = "device"

	// Worker output
	MsgLogs   MessageType = "logs"   // Recent output lines
	MsgAttach MessageType = "attach" // Subscribe to live output
	MsgDetach MessageType = "detach" // Unsubscribe

	// Remote service
	MsgLicenseValidate MessageType = "license.validate"
	MsgUpdateCheck     MessageType = "update.check"
)

// Request is the envelope for all IPC requests.
type Request struct {
	Type    MessageType `json:"type"`
	ID      string      `json:"id,omitempty"`      // Optional request ID for correlation
	Payload any         `json:"payload,omitempty"` // Type-specific payload
}

// Response is the envelope for all IPC responses.
type Response struct {
	Type    MessageType `json:"type"`
	ID      string      `json:"id,omitempty"` // Correlates with request ID
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Payload any         `json:"payload,omitempty"` // Type-specific payload
}

// PingResponse is the payload for ping responses.
type PingResponse struct {
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
}

// StatusResponse is the payload for status responses.
type StatusResponse struct {
	Daemon  DaemonStatus  `json:"daemon"`
	Worker  WorkerStatus  `json:"worker"`
	History HistoryStatus `json:"history"`
}

// HistoryStatus describes the buffered output available to `paira logs`.
type HistoryStatus struct {
	Lines    int `json:"lines"`
	Capacity int `json:"capacity"`
}

// DaemonStatus contains daemon health info.
type DaemonStatus struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

// WorkerStatus describes the supervised worker. The state is bookkeeping
// only: a worker that exited on its own still reports "running".
type WorkerStatus struct {
	State     string    `json:"state"` // running, stopped
	PID       int       `json:"pid,omitempty"`
	Token     string    `json:"token,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Path      string    `json:"path"`
}

// StartResponse is the payload for start responses.
type StartResponse struct {
	Worker WorkerStatus `json:"worker"`
}

// IdentityResponse is the payload for identity responses.
type IdentityResponse struct {
	Hash   string `json:"hash"`
	Method string `json:"method"` // Query tier that produced the sample
}

// DeviceResponse is the payload for device responses.
type DeviceResponse struct {
	Name string `json:"name"`
}

// LogsRequest is the payload for logs requests.
type LogsRequest struct {
	Limit int `json:"limit,omitempty"` // 0 = everything retained
}

// LogLine is one relayed worker output line.
type LogLine struct {
	Source string `json:"source"` // stdout, stderr
	Text   string `json:"text"`
	Token  string `json:"token,omitempty"` // Run that printed the line
}

// LogsResponse is the payload for logs responses.
type LogsResponse struct {
	Lines []LogLine `json:"lines"`
}

// AttachRequest is the payload for attach requests.
type AttachRequest struct {
	Sources []string `json:"sources,omitempty"` // Filter by stream, empty = all
}

// StreamEvent is sent to attached clients.
type StreamEvent struct {
	Type   string `json:"type"`             // "log", "state"
	Source string `json:"source,omitempty"` // For log events: stdout, stderr
	Data   string `json:"data,omitempty"`   // For log events: the emitted message
	State  string `json:"state,omitempty"`  // For state events
	Token  string `json:"token,omitempty"`  // Run the event belongs to
}

// LicenseValidateRequest is the payload for license.validate requests.
type LicenseValidateRequest struct {
	Token string `json:"token"`
	HWID  string `json:"hwid,omitempty"` // Empty = resolve on the daemon's machine
}

// LicenseValidateResponse is the payload for license.validate responses.
type LicenseValidateResponse struct {
	HWID   string          `json:"hwid"`
	Result json.RawMessage `json:"result"` // Service response, passed through
}

// UpdateCheckResponse is the payload for update.check responses.
type UpdateCheckResponse struct {
	Result json.RawMessage `json:"result"` // Service response, passed through
}
