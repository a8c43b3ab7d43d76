package daemon

import (
	"errors"
	"fmt"
)

// Client-side failures. Wrapped errors keep the underlying net error.
var (
	ErrNotConnected     = errors.New("daemon: not connected")
	ErrConnectionFailed = errors.New("daemon: connection failed")
	ErrRequestTimeout   = errors.New("daemon: request timeout")
)

// ServerError carries a handler failure back across the socket. Message is
// the handler's own error text ("worker is already running").
type ServerError struct {
	Operation string
	Message   string
}

// NewServerError returns a *ServerError for a failed operation.
func NewServerError(operation, message string) *ServerError {
	return &ServerError{Operation: operation, Message: message}
}

func (e *ServerError) Error() string {
	return e.Operation + " failed: " + e.Message
}

// timeoutError reports a request that got no response in time.
func timeoutError(t MessageType) error {
	return fmt.Errorf("%w: %s", ErrRequestTimeout, t)
}
