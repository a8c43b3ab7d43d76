package supervisor

import (
	"context"
	"log/slog"

	"github.com/tessro/paira/internal/daemon"
	"github.com/tessro/paira/internal/relay"
)

// handleAttach subscribes a client to streaming events.
func (s *Supervisor) handleAttach(ctx context.Context, req *daemon.Request) *daemon.Response {
	var attachReq daemon.AttachRequest
	if req.Payload != nil {
		if err := decodePayload(req.Payload, &attachReq); err != nil {
			return errorResponse(req, "invalid payload: "+err.Error())
		}
	}
	for _, src := range attachReq.Sources {
		if src != string(relay.Stdout) && src != string(relay.Stderr) {
			return errorResponse(req, "unknown source: "+src)
		}
	}

	conn := daemon.ConnFromContext(ctx)
	srv := daemon.ServerFromContext(ctx)

	if conn == nil || srv == nil {
		return errorResponse(req, "internal error: missing connection context")
	}

	srv.Attach(conn, attachReq.Sources)
	return successResponse(req, nil)
}

// handleDetach unsubscribes a client from streaming events.
func (s *Supervisor) handleDetach(ctx context.Context, req *daemon.Request) *daemon.Response {
	conn := daemon.ConnFromContext(ctx)
	srv := daemon.ServerFromContext(ctx)

	if conn == nil || srv == nil {
		return errorResponse(req, "internal error: missing connection context")
	}

	srv.Detach(conn)
	return successResponse(req, nil)
}

// handleLogs returns recent output lines from the history.
func (s *Supervisor) handleLogs(ctx context.Context, req *daemon.Request) *daemon.Response {
	var logsReq daemon.LogsRequest
	if err := decodePayload(req.Payload, &logsReq); err != nil {
		return errorResponse(req, "invalid payload: "+err.Error())
	}
	if logsReq.Limit < 0 {
		return errorResponse(req, "limit must not be negative")
	}

	lines := s.history.Lines(logsReq.Limit)
	out := make([]daemon.LogLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, daemon.LogLine{
			Source: string(l.Source),
			Text:   l.Message(),
			Token:  l.Token,
		})
	}
	return successResponse(req, daemon.LogsResponse{Lines: out})
}

// SetServer sets the daemon server for broadcasting events.
func (s *Supervisor) SetServer(srv *daemon.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server = srv
}

// Server returns the daemon server, or nil if not set.
func (s *Supervisor) Server() *daemon.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server
}

// handleLine records a worker output line and fans it out to the daemon log
// and attached clients.
func (s *Supervisor) handleLine(line relay.Line) {
	s.history.Add(line)

	if line.Source == relay.Stderr {
		slog.Warn("worker output", "component", "worker", "run", line.Token, "source", line.Source, "text", line.Text)
	} else {
		slog.Info("worker output", "component", "worker", "run", line.Token, "source", line.Source, "text", line.Text)
	}

	srv := s.Server()
	if srv == nil {
		return
	}
	srv.Broadcast(&daemon.StreamEvent{
		Type:   "log",
		Source: string(line.Source),
		Data:   line.Message(),
		Token:  line.Token,
	})
}
