package cli

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/tessro/paira/internal/daemon"
)

// ErrDaemonNotRunning means nothing is accepting on the daemon socket.
var ErrDaemonNotRunning = errors.New("daemon is not running (start it with: paira server start)")

// socketOverride replaces the default socket path in tests.
var socketOverride string

// SetSocketPath points the CLI at a different daemon socket. An empty path
// restores the default.
func SetSocketPath(path string) {
	socketOverride = path
}

func getSocketPath() string {
	if socketOverride == "" {
		return daemon.DefaultSocketPath()
	}
	return socketOverride
}

// NewClient returns an unconnected client for the current socket path.
func NewClient() *daemon.Client {
	return daemon.NewClient(getSocketPath())
}

// ConnectClient dials the daemon. A missing socket, or one left behind by a
// dead daemon, is reported as ErrDaemonNotRunning.
func ConnectClient() (*daemon.Client, error) {
	client := NewClient()
	err := client.Connect()
	switch {
	case err == nil:
		return client, nil
	case daemonAbsent(err):
		return nil, ErrDaemonNotRunning
	default:
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
}

func daemonAbsent(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	return errors.Is(opErr, os.ErrNotExist) ||
		errors.Is(opErr, syscall.ENOENT) ||
		errors.Is(opErr, syscall.ECONNREFUSED)
}

// IsDaemonRunning reports whether a daemon answers on the socket.
func IsDaemonRunning() bool {
	client, err := ConnectClient()
	if err != nil {
		return false
	}
	_ = client.Close()
	return true
}
