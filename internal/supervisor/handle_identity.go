package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/tessro/paira/internal/daemon"
)

// handleIdentity resolves the machine fingerprint. Resolution is not cached:
// every request walks the tier chain again.
func (s *Supervisor) handleIdentity(ctx context.Context, req *daemon.Request) *daemon.Response {
	start := time.Now()
	ident, err := s.identity.Resolve(ctx)
	if err != nil {
		slog.Error("identity resolution failed", "error", err)
		return errorResponse(req, err.Error())
	}
	slog.Debug("identity resolved", "method", ident.Method, "duration", time.Since(start))
	return successResponse(req, daemon.IdentityResponse{
		Hash:   ident.Hash,
		Method: ident.Method,
	})
}

// handleDevice resolves the device name. It never fails.
func (s *Supervisor) handleDevice(ctx context.Context, req *daemon.Request) *daemon.Response {
	return successResponse(req, daemon.DeviceResponse{
		Name: s.device.Resolve(ctx),
	})
}
