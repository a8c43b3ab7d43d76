package supervisor

import (
	"context"
	"log/slog"
	"os"

	"github.com/tessro/paira/internal/daemon"
	"github.com/tessro/paira/internal/worker"
)

// handleStart launches the worker.
func (s *Supervisor) handleStart(ctx context.Context, req *daemon.Request) *daemon.Response {
	if err := s.worker.Start(); err != nil {
		return errorResponse(req, err.Error())
	}

	info := s.worker.Info()
	s.broadcastState(info.Status, info.Token)

	return successResponse(req, daemon.StartResponse{
		Worker: workerStatus(info, s.workerPath),
	})
}

// handleStop terminates the worker.
func (s *Supervisor) handleStop(ctx context.Context, req *daemon.Request) *daemon.Response {
	before := s.worker.Info()
	if err := s.worker.Stop(); err != nil {
		return errorResponse(req, err.Error())
	}

	s.broadcastState(worker.StatusStopped, before.Token)

	return successResponse(req, nil)
}

// handleStatus reports daemon and worker state.
func (s *Supervisor) handleStatus(ctx context.Context, req *daemon.Request) *daemon.Response {
	return successResponse(req, daemon.StatusResponse{
		Daemon: daemon.DaemonStatus{
			Running:   true,
			PID:       os.Getpid(),
			StartedAt: s.startedAt,
			Version:   Version,
		},
		Worker: workerStatus(s.worker.Info(), s.workerPath),
		History: daemon.HistoryStatus{
			Lines:    s.history.Len(),
			Capacity: s.history.Cap(),
		},
	})
}

// broadcastState tells attached clients the worker changed state.
func (s *Supervisor) broadcastState(status worker.Status, token string) {
	srv := s.Server()
	if srv == nil {
		return
	}
	slog.Debug("broadcasting worker state", "state", status, "attached", srv.AttachedCount())
	srv.Broadcast(&daemon.StreamEvent{
		Type:  "state",
		State: string(status),
		Token: token,
	})
}
