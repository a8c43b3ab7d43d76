// Package supervisor provides the daemon request handler. It owns the worker
// process, the output history, the machine identity resolvers and the
// license service client.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tessro/paira/internal/daemon"
	"github.com/tessro/paira/internal/fingerprint"
	"github.com/tessro/paira/internal/relay"
	"github.com/tessro/paira/internal/version"
	"github.com/tessro/paira/internal/worker"
)

// Version is the supervisor/daemon version.
var Version = version.Current()

// IdentityResolver produces the machine fingerprint.
type IdentityResolver interface {
	Resolve(ctx context.Context) (fingerprint.Identity, error)
}

// NameResolver produces the device's human-readable name.
type NameResolver interface {
	Resolve(ctx context.Context) string
}

// LicenseService talks to the remote license and update endpoints.
type LicenseService interface {
	Validate(ctx context.Context, hwid, token string) (json.RawMessage, error)
	CheckUpdates(ctx context.Context) (json.RawMessage, error)
}

// ErrNoLicenseService is returned by service requests when the daemon was
// started without a license client.
var ErrNoLicenseService = errors.New("license service not configured")

// Config holds the supervisor's collaborators.
type Config struct {
	Worker      worker.Config
	HistorySize int

	Identity IdentityResolver
	Device   NameResolver
	License  LicenseService

	// LicenseToken is used by license.validate requests that carry no token.
	LicenseToken string
}

// Supervisor handles IPC requests and drives the worker process.
// It implements the daemon.Handler interface.
type Supervisor struct {
	worker       *worker.Supervisor
	workerPath   string
	history      *relay.History
	identity     IdentityResolver
	device       NameResolver
	license      LicenseService
	licenseToken string
	startedAt    time.Time
	unsubscribe  func()

	shutdownCh   chan struct{} // closed once a shutdown is requested
	shutdownOnce sync.Once

	mu sync.RWMutex
	// +checklocks:mu
	server *daemon.Server // Server reference for broadcasting output events
}

// New creates a Supervisor. Missing resolvers fall back to the platform
// defaults.
func New(cfg Config) *Supervisor {
	if cfg.Identity == nil {
		cfg.Identity = fingerprint.DefaultResolver(nil)
	}
	if cfg.Device == nil {
		cfg.Device = fingerprint.DefaultNameResolver(nil)
	}

	s := &Supervisor{
		worker:       worker.New(cfg.Worker),
		workerPath:   cfg.Worker.Path,
		history:      relay.NewHistory(cfg.HistorySize),
		identity:     cfg.Identity,
		device:       cfg.Device,
		license:      cfg.License,
		licenseToken: cfg.LicenseToken,
		startedAt:    time.Now(),
		shutdownCh:   make(chan struct{}),
	}

	s.unsubscribe = s.worker.OnLine(s.handleLine)

	return s
}

// Handle processes IPC requests and returns responses.
// Implements daemon.Handler.
func (s *Supervisor) Handle(ctx context.Context, req *daemon.Request) *daemon.Response {
	slog.Debug("supervisor handling request", "type", req.Type)
	switch req.Type {
	// Server management
	case daemon.MsgPing:
		return s.handlePing(ctx, req)
	case daemon.MsgShutdown:
		return s.handleShutdown(ctx, req)

	// Worker control
	case daemon.MsgStart:
		return s.handleStart(ctx, req)
	case daemon.MsgStop:
		return s.handleStop(ctx, req)
	case daemon.MsgStatus:
		return s.handleStatus(ctx, req)

	// Machine identity
	case daemon.MsgIdentity:
		return s.handleIdentity(ctx, req)
	case daemon.MsgDevice:
		return s.handleDevice(ctx, req)

	// Worker output
	case daemon.MsgLogs:
		return s.handleLogs(ctx, req)
	case daemon.MsgAttach:
		return s.handleAttach(ctx, req)
	case daemon.MsgDetach:
		return s.handleDetach(ctx, req)

	// Remote service
	case daemon.MsgLicenseValidate:
		return s.handleLicenseValidate(ctx, req)
	case daemon.MsgUpdateCheck:
		return s.handleUpdateCheck(ctx, req)

	default:
		return errorResponse(req, fmt.Sprintf("unknown message type: %s", req.Type))
	}
}

// ShutdownCh returns a channel that is closed when shutdown is requested.
func (s *Supervisor) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

// Close stops the worker if it is running and detaches from its output.
// The daemon calls it on the way out so no worker outlives it.
func (s *Supervisor) Close() error {
	err := s.worker.Stop()
	if errors.Is(err, worker.ErrNotRunning) {
		err = nil
	}
	s.unsubscribe()
	return err
}
