package supervisor

import (
	"context"
	"time"

	"github.com/tessro/paira/internal/daemon"
)

func (s *Supervisor) handlePing(ctx context.Context, req *daemon.Request) *daemon.Response {
	return successResponse(req, daemon.PingResponse{
		Version:   Version,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		StartedAt: s.startedAt,
	})
}

// handleShutdown asks the daemon to exit. Repeated requests are no-ops; the
// daemon's main loop watches ShutdownCh and does the actual teardown.
func (s *Supervisor) handleShutdown(ctx context.Context, req *daemon.Request) *daemon.Response {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	return successResponse(req, nil)
}
