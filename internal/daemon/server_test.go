package daemon

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestServer_StartStop(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test.sock")

	handler := HandlerFunc(func(ctx context.Context, req *Request) *Response {
		return &Response{Success: true}
	})

	srv := NewServer(socketPath, handler)

	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Verify socket exists
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		t.Fatal("socket file not created")
	}

	// Verify we can connect
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	conn.Close()

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// Verify socket removed
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatal("socket file not removed after Stop()")
	}
}

func TestServer_RequestResponse(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test.sock")

	handler := HandlerFunc(func(ctx context.Context, req *Request) *Response {
		if req.Type == MsgPing {
			return &Response{
				Type:    MsgPing,
				ID:      req.ID,
				Success: true,
				Payload: &PingResponse{
					Version:   "1.0.0",
					Uptime:    "1h",
					StartedAt: time.Now(),
				},
			}
		}
		return &Response{Success: false, Error: "unknown message type"}
	})

	srv := NewServer(socketPath, handler)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = srv.Stop() }()

	// Connect and send request
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	req := &Request{
		Type: MsgPing,
		ID:   "test-1",
	}
	if err := encoder.Encode(req); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if !resp.Success {
		t.Errorf("expected Success=true, got false with error: %s", resp.Error)
	}
	if resp.Type != MsgPing {
		t.Errorf("expected Type=%s, got %s", MsgPing, resp.Type)
	}
	if resp.ID != "test-1" {
		t.Errorf("expected ID=test-1, got %s", resp.ID)
	}
}

func TestServer_DoubleStart(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test.sock")

	handler := HandlerFunc(func(ctx context.Context, req *Request) *Response {
		return &Response{Success: true}
	})

	srv := NewServer(socketPath, handler)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = srv.Stop() }()

	// Second start should fail
	if err := srv.Start(); err == nil {
		t.Error("expected error on double Start(), got nil")
	}
}

func TestServer_ContextContainsConnAndServer(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test.sock")

	var gotConn net.Conn
	var gotServer *Server

	handler := HandlerFunc(func(ctx context.Context, req *Request) *Response {
		gotConn = ConnFromContext(ctx)
		gotServer = ServerFromContext(ctx)
		return &Response{Success: true}
	})

	srv := NewServer(socketPath, handler)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = srv.Stop() }()

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	if err := encoder.Encode(&Request{Type: MsgPing}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if gotConn == nil {
		t.Error("ConnFromContext returned nil")
	}
	if gotServer != srv {
		t.Error("ServerFromContext did not return the server")
	}
}

// attachHandler subscribes attach requests with the given stream filter.
func attachHandler(sources []string) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) *Response {
		switch req.Type {
		case MsgAttach:
			ServerFromContext(ctx).Attach(ConnFromContext(ctx), sources)
		case MsgDetach:
			ServerFromContext(ctx).Detach(ConnFromContext(ctx))
		}
		return &Response{Success: true}
	})
}

func startServer(t *testing.T, handler Handler) (*Server, string) {
	t.Helper()
	socketPath := filepath.Join(shortTempDir(t), "test.sock")
	srv := NewServer(socketPath, handler)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return srv, socketPath
}

func TestServer_AttachBroadcast(t *testing.T) {
	srv, socketPath := startServer(t, attachHandler(nil))

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	if err := encoder.Encode(&Request{Type: MsgAttach}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !resp.Success || resp.Type != MsgAttach {
		t.Fatalf("attach response = %+v", resp)
	}

	if srv.AttachedCount() != 1 {
		t.Errorf("expected 1 attached client, got %d", srv.AttachedCount())
	}

	srv.Broadcast(&StreamEvent{
		Type:   "log",
		Source: "stdout",
		Data:   "hello world",
		Token:  "run-1",
	})

	var received StreamEvent
	if err := decoder.Decode(&received); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if received.Data != "hello world" {
		t.Errorf("expected Data='hello world', got %s", received.Data)
	}
	if received.Token != "run-1" {
		t.Errorf("expected Token='run-1', got %s", received.Token)
	}
}

func TestServer_AttachWithSourceFilter(t *testing.T) {
	srv, socketPath := startServer(t, attachHandler([]string{"stderr"}))

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	if err := encoder.Encode(&Request{Type: MsgAttach}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	srv.Broadcast(&StreamEvent{Type: "log", Source: "stdout", Data: "should not receive"})
	srv.Broadcast(&StreamEvent{Type: "log", Source: "stderr", Data: "ERROR: should receive"})
	// Events without a source bypass the filter
	srv.Broadcast(&StreamEvent{Type: "state", State: "stopped"})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))

	var event StreamEvent
	if err := decoder.Decode(&event); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if event.Source != "stderr" || event.Data != "ERROR: should receive" {
		t.Errorf("first event = %+v, want the stderr line", event)
	}

	if err := decoder.Decode(&event); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if event.Type != "state" || event.State != "stopped" {
		t.Errorf("second event = %+v, want the state event", event)
	}
}

func TestServer_Detach(t *testing.T) {
	srv, socketPath := startServer(t, attachHandler(nil))

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	for _, typ := range []MessageType{MsgAttach, MsgDetach} {
		if err := encoder.Encode(&Request{Type: typ}); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		var resp Response
		if err := decoder.Decode(&resp); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
	}

	if n := srv.AttachedCount(); n != 0 {
		t.Errorf("AttachedCount() after detach = %d, want 0", n)
	}
}

func TestServer_DisconnectDetaches(t *testing.T) {
	srv, socketPath := startServer(t, attachHandler(nil))

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)
	if err := encoder.Encode(&Request{Type: MsgAttach}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.AttachedCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client still attached after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_NilResponse(t *testing.T) {
	_, socketPath := startServer(t, HandlerFunc(func(ctx context.Context, req *Request) *Response {
		return nil
	}))

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(&Request{Type: MsgStatus, ID: "x"}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if resp.Success || resp.Type != MsgStatus || resp.ID != "x" {
		t.Errorf("response = %+v, want failed status response with id x", resp)
	}
}

func TestServer_MalformedRequest(t *testing.T) {
	_, socketPath := startServer(t, HandlerFunc(func(ctx context.Context, req *Request) *Response {
		return &Response{Success: true}
	}))

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if resp.Success {
		t.Error("malformed request should fail")
	}
}

func TestServer_Done(t *testing.T) {
	srv, _ := startServer(t, HandlerFunc(func(ctx context.Context, req *Request) *Response {
		return &Response{Success: true}
	}))

	select {
	case <-srv.Done():
		t.Fatal("Done() closed before Stop")
	default:
	}
	_ = srv.Stop()
	select {
	case <-srv.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() not closed after Stop")
	}
}

func TestDefaultSocketPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAIRA_SOCKET_PATH", "")
	t.Setenv("PAIRA_DIR", dir)

	if got, want := DefaultSocketPath(), filepath.Join(dir, "paira.sock"); got != want {
		t.Errorf("DefaultSocketPath() = %s, want %s", got, want)
	}
}

func TestServer_StalledClientDoesNotBlockBroadcast(t *testing.T) {
	prev := eventWriteTimeout
	eventWriteTimeout = 200 * time.Millisecond
	t.Cleanup(func() { eventWriteTimeout = prev })

	srv, socketPath := startServer(t, attachHandler(nil))

	// Attach, read the ack, then never read again
	stalled, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer stalled.Close()
	if err := json.NewEncoder(stalled).Encode(&Request{Type: MsgAttach}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var ack Response
	if err := json.NewDecoder(stalled).Decode(&ack); err != nil || !ack.Success {
		t.Fatalf("attach ack = %+v, %v", ack, err)
	}

	line := strings.Repeat("x", 4096)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200000; i++ {
			srv.Broadcast(&StreamEvent{Type: "log", Source: "stdout", Data: line})
		}
		srv.Broadcast(&StreamEvent{Type: "state", State: "stopped"})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Broadcast blocked on a client that stopped reading")
	}

	// Other connections are still served
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if err := json.NewEncoder(conn).Encode(&Request{Type: MsgPing, ID: "p"}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil || resp.ID != "p" {
		t.Fatalf("ping response = %+v, %v", resp, err)
	}

	// The stalled client is disconnected once a write times out
	deadline := time.Now().Add(3 * time.Second)
	for srv.AttachedCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("stalled client still attached")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
