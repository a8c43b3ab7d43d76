package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tessro/paira/internal/logging"
	"github.com/tessro/paira/internal/paths"
)

// DefaultSocketPath returns the default Unix socket path.
func DefaultSocketPath() string {
	return paths.SocketPath()
}

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	connKey   contextKey = "conn"
	serverKey contextKey = "server"
)

// Handler processes IPC requests and returns responses.
// This interface is implemented by the supervisor or a stub for testing.
type Handler interface {
	// Handle processes a request and returns a response.
	// The context contains the connection and server for attach/detach operations.
	// Use ConnFromContext and ServerFromContext to retrieve them.
	Handle(ctx context.Context, req *Request) *Response
}

// ConnFromContext retrieves the client connection from the context.
func ConnFromContext(ctx context.Context) net.Conn {
	conn, _ := ctx.Value(connKey).(net.Conn)
	return conn
}

// ServerFromContext retrieves the server from the context.
func ServerFromContext(ctx context.Context) *Server {
	srv, _ := ctx.Value(serverKey).(*Server)
	return srv
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, req *Request) *Response

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// Server is the Unix socket RPC server for the paira daemon.
type Server struct {
	socketPath string
	handler    Handler
	listener   net.Listener // Set in Start before goroutine, closed in Stop

	mu sync.Mutex
	// +checklocks:mu
	conns map[net.Conn]*connWriter
	// +checklocks:mu
	attached map[net.Conn]*attachedClient
	// +checklocks:mu
	started bool
	done    chan struct{}
}

// eventQueueSize bounds the events buffered for one attached client. Events
// beyond it are dropped for that client.
const eventQueueSize = 1024

// eventWriteTimeout bounds one event write. A client that cannot take an
// event within it is disconnected.
var eventWriteTimeout = 5 * time.Second

// connWriter serializes writes to one connection. Responses and events
// share it so they never interleave.
type connWriter struct {
	conn net.Conn

	mu sync.Mutex
	// +checklocks:mu
	enc *json.Encoder
}

func newConnWriter(conn net.Conn) *connWriter {
	return &connWriter{conn: conn, enc: json.NewEncoder(conn)}
}

func (w *connWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// writeWithin is write with a deadline. The deadline is cleared afterwards
// so later responses are not affected.
func (w *connWriter) writeWithin(v any, timeout time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	err := w.enc.Encode(v)
	_ = w.conn.SetWriteDeadline(time.Time{})
	return err
}

// attachedClient tracks a client subscribed to streaming events. Broadcast
// only queues; a per-client goroutine does the writing, so a client that
// stops reading never holds up the broadcaster.
type attachedClient struct {
	w       *connWriter
	sources []string // Filter: empty means all streams (immutable after creation)
	events  chan *StreamEvent
	quit    chan struct{}
	dropped atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
}

func newAttachedClient(w *connWriter, sources []string) *attachedClient {
	return &attachedClient{
		w:       w,
		sources: sources,
		events:  make(chan *StreamEvent, eventQueueSize),
		quit:    make(chan struct{}),
	}
}

func (c *attachedClient) wants(event *StreamEvent) bool {
	return event.Source == "" || len(c.sources) == 0 || slices.Contains(c.sources, event.Source)
}

// enqueue never blocks.
func (c *attachedClient) enqueue(event *StreamEvent) {
	select {
	case c.events <- event:
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			slog.Warn("event queue full, dropping events", "dropped", n)
		}
	}
}

func (c *attachedClient) stop() {
	c.stopOnce.Do(func() { close(c.quit) })
}

// NewServer creates a new daemon server.
func NewServer(socketPath string, handler Handler) *Server {
	if socketPath == "" {
		socketPath = DefaultSocketPath()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		conns:      make(map[net.Conn]*connWriter),
		attached:   make(map[net.Conn]*attachedClient),
		done:       make(chan struct{}),
	}
}

// SocketPath returns the socket path this server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start binds the socket and begins accepting connections. Any file left
// at the socket path is replaced, so callers must already hold the PID file.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("server already started")
	}

	listener, err := listenUnix(s.socketPath)
	if err != nil {
		return err
	}
	s.listener = listener
	s.started = true

	slog.Info("daemon server started", "socket", s.socketPath)
	go s.acceptLoop()
	return nil
}

// listenUnix listens on a user-private Unix socket at path.
func listenUnix(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("set socket permissions: %w", err)
	}
	return listener, nil
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer logging.LogPanic("daemon-accept", nil)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				slog.Error("accept connection failed", "error", err)
				continue
			}
		}

		w := newConnWriter(conn)
		s.mu.Lock()
		s.conns[conn] = w
		connCount := len(s.conns)
		s.mu.Unlock()

		slog.Debug("client connected", "connections", connCount)

		go s.handleConnection(conn, w)
	}
}

// handleConnection processes requests from a single client.
func (s *Server) handleConnection(conn net.Conn, w *connWriter) {
	defer logging.LogPanic("daemon-conn", nil)
	defer func() {
		conn.Close()
		s.detach(conn, nil)
		s.mu.Lock()
		delete(s.conns, conn)
		connCount := len(s.conns)
		s.mu.Unlock()
		slog.Debug("client disconnected", "connections", connCount)
	}()

	decoder := json.NewDecoder(conn)

	baseCtx := context.WithValue(context.Background(), connKey, conn)
	baseCtx = context.WithValue(baseCtx, serverKey, s)

	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			if err == io.EOF {
				return
			}
			slog.Warn("decode request failed", "error", err)
			_ = w.write(&Response{Error: fmt.Sprintf("decode request: %v", err)})
			return
		}

		slog.Debug("request received", "type", req.Type, "id", req.ID)

		resp := s.handler.Handle(baseCtx, &req)
		if resp == nil {
			resp = &Response{Error: "handler returned nil response"}
		}
		resp.Type, resp.ID = req.Type, req.ID

		if !resp.Success {
			slog.Warn("request failed", "type", req.Type, "error", resp.Error)
		}

		if err := s.respond(conn, w, resp); err != nil {
			slog.Debug("write response failed", "error", err)
			return
		}
	}
}

// respond writes resp and, if the connection attached during the request,
// starts delivering events to it. Delivery starts only after the response
// is on the wire, so no event can overtake it.
func (s *Server) respond(conn net.Conn, w *connWriter, resp *Response) error {
	if err := w.write(resp); err != nil {
		return err
	}

	s.mu.Lock()
	client := s.attached[conn]
	s.mu.Unlock()
	if client != nil {
		client.startOnce.Do(func() { go s.deliver(conn, client) })
	}
	return nil
}

// deliver writes queued events to one client until it detaches. A failed or
// timed-out write drops the client and closes its connection.
func (s *Server) deliver(conn net.Conn, client *attachedClient) {
	defer logging.LogPanic("daemon-events", nil)
	for {
		select {
		case <-client.quit:
			return
		case event := <-client.events:
			select {
			case <-client.quit:
				return
			default:
			}
			if err := client.w.writeWithin(event, eventWriteTimeout); err != nil {
				slog.Warn("event delivery failed, disconnecting client", "error", err)
				s.detach(conn, client)
				_ = conn.Close()
				return
			}
		}
	}
}

// Stop closes the listener and every open connection, then removes the
// socket file. Stopping a server that is not running is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	conns := s.conns
	s.conns = make(map[net.Conn]*connWriter)
	for _, client := range s.attached {
		client.stop()
	}
	s.attached = make(map[net.Conn]*attachedClient)
	close(s.done)
	// Unblocks Accept
	_ = s.listener.Close()
	s.mu.Unlock()

	slog.Info("daemon server stopping", "active_connections", len(conns))
	for conn := range conns {
		_ = conn.Close()
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove socket: %w", err)
	}

	slog.Info("daemon server stopped")
	return nil
}

// Done is closed when Stop is called.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Attach registers a connection for streaming events. Delivery starts once
// the response to the current request has been written. Attaching again
// replaces the earlier subscription.
func (s *Server) Attach(conn net.Conn, sources []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.conns[conn]
	if !ok {
		return
	}
	if prev, ok := s.attached[conn]; ok {
		prev.stop()
	}
	s.attached[conn] = newAttachedClient(w, sources)
}

// Detach removes a connection from streaming events.
func (s *Server) Detach(conn net.Conn) {
	s.detach(conn, nil)
}

// detach removes conn's subscription. When only is set, the subscription is
// removed only if it is still that one.
func (s *Server) detach(conn net.Conn, only *attachedClient) {
	s.mu.Lock()
	client, ok := s.attached[conn]
	if ok && (only == nil || client == only) {
		delete(s.attached, conn)
	}
	s.mu.Unlock()
	if ok && (only == nil || client == only) {
		client.stop()
	}
}

// Broadcast queues a stream event for every attached client. Log events are
// filtered by each client's stream subscription; events without a source go
// to everyone. It never blocks on a client.
func (s *Server) Broadcast(event *StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, client := range s.attached {
		if client.wants(event) {
			client.enqueue(event)
		}
	}
}

// AttachedCount returns the number of attached streaming clients.
func (s *Server) AttachedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attached)
}
