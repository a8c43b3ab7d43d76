package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Client connects to the paira daemon over Unix socket.
type Client struct {
	socketPath string

	mu sync.Mutex
	// +checklocks:mu
	conn net.Conn
	// +checklocks:mu
	encoder *json.Encoder
	// +checklocks:mu
	decoder *json.Decoder

	// ioMu serializes request/response cycles on the main connection.
	// Must be acquired AFTER mu if both are needed.
	ioMu sync.Mutex

	reqID atomic.Uint64

	// Event streaming via dedicated connection
	eventMu sync.Mutex
	// +checklocks:eventMu
	eventConn net.Conn
	// +checklocks:eventMu
	eventEnc *json.Encoder
	// +checklocks:eventMu
	eventDone chan struct{}
}

// NewClient creates a new daemon client.
func NewClient(socketPath string) *Client {
	if socketPath == "" {
		socketPath = DefaultSocketPath()
	}
	return &Client{
		socketPath: socketPath,
	}
}

// ConnectTimeout is the default timeout for connecting to the daemon.
const ConnectTimeout = 5 * time.Second

// RequestTimeout is the default timeout for request/response operations.
// It covers identity resolution and remote service calls made on the
// client's behalf.
const RequestTimeout = 60 * time.Second

// Connect establishes a connection to the daemon.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", c.socketPath, ConnectTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.conn = conn
	c.encoder = json.NewEncoder(conn)
	c.decoder = json.NewDecoder(conn)
	return nil
}

// Close closes the connection to the daemon.
func (c *Client) Close() error {
	c.StopEventStream()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.encoder = nil
	c.decoder = nil
	return err
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SocketPath returns the socket path this client connects to.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// nextID generates the next request ID.
func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.reqID.Add(1))
}

// decodePayload decodes the response payload into the given type.
// If payload is nil, returns a pointer to the zero value of T.
func decodePayload[T any](payload any) (*T, error) {
	var result T
	if payload == nil {
		return &result, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &result, nil
}

// Send sends a request and waits for the response.
// On connection errors, the connection is closed so that IsConnected()
// returns false.
func (c *Client) Send(req *Request) (*Response, error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := c.conn
	encoder := c.encoder
	decoder := c.decoder
	c.mu.Unlock()

	if req.ID == "" {
		req.ID = c.nextID()
	}

	c.ioMu.Lock()
	defer c.ioMu.Unlock()

	if err := conn.SetDeadline(time.Now().Add(RequestTimeout)); err != nil {
		c.closeConn()
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	if err := encoder.Encode(req); err != nil {
		c.closeConn()
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		c.closeConn()
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, timeoutError(req.Type)
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &resp, nil
}

// closeConn closes the main connection and clears connection state.
// Caller must NOT hold c.mu.
func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.encoder = nil
		c.decoder = nil
	}
}

// call sends a request of type t and returns the successful response.
// Daemon-side failures become *ServerError with op as the operation.
func (c *Client) call(t MessageType, op string, payload any) (*Response, error) {
	resp, err := c.Send(&Request{Type: t, Payload: payload})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, NewServerError(op, resp.Error)
	}
	return resp, nil
}

// Ping sends a ping request to check daemon connectivity.
func (c *Client) Ping() (*PingResponse, error) {
	resp, err := c.call(MsgPing, "ping", nil)
	if err != nil {
		return nil, err
	}
	return decodePayload[PingResponse](resp.Payload)
}

// Shutdown requests the daemon to shut down.
func (c *Client) Shutdown() error {
	_, err := c.call(MsgShutdown, "shutdown", nil)
	return err
}

// Status gets the daemon and worker status.
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.call(MsgStatus, "status", nil)
	if err != nil {
		return nil, err
	}
	return decodePayload[StatusResponse](resp.Payload)
}

// Start launches the worker.
func (c *Client) Start() (*StartResponse, error) {
	resp, err := c.call(MsgStart, "start", nil)
	if err != nil {
		return nil, err
	}
	return decodePayload[StartResponse](resp.Payload)
}

// Stop terminates the worker.
func (c *Client) Stop() error {
	_, err := c.call(MsgStop, "stop", nil)
	return err
}

// Identity resolves the machine fingerprint on the daemon's host.
func (c *Client) Identity() (*IdentityResponse, error) {
	resp, err := c.call(MsgIdentity, "identity", nil)
	if err != nil {
		return nil, err
	}
	return decodePayload[IdentityResponse](resp.Payload)
}

// Device resolves the device name on the daemon's host.
func (c *Client) Device() (*DeviceResponse, error) {
	resp, err := c.call(MsgDevice, "device", nil)
	if err != nil {
		return nil, err
	}
	return decodePayload[DeviceResponse](resp.Payload)
}

// Logs returns up to limit recent worker output lines, oldest first.
func (c *Client) Logs(limit int) (*LogsResponse, error) {
	resp, err := c.call(MsgLogs, "logs", LogsRequest{Limit: limit})
	if err != nil {
		return nil, err
	}
	return decodePayload[LogsResponse](resp.Payload)
}

// LicenseValidate validates a license token. An empty hwid asks the daemon
// to use its own machine fingerprint.
func (c *Client) LicenseValidate(token, hwid string) (*LicenseValidateResponse, error) {
	resp, err := c.call(MsgLicenseValidate, "license validate", LicenseValidateRequest{Token: token, HWID: hwid})
	if err != nil {
		return nil, err
	}
	return decodePayload[LicenseValidateResponse](resp.Payload)
}

// UpdateCheck asks the update service for the latest release.
func (c *Client) UpdateCheck() (*UpdateCheckResponse, error) {
	resp, err := c.call(MsgUpdateCheck, "update check", nil)
	if err != nil {
		return nil, err
	}
	return decodePayload[UpdateCheckResponse](resp.Payload)
}

// EventResult contains either a stream event or an error.
type EventResult struct {
	Event *StreamEvent
	Err   error
}

// StreamEvents opens a dedicated connection for event streaming and returns
// a channel. Events are received until an error occurs or StopEventStream is
// called.
func (c *Client) StreamEvents(sources []string) (<-chan EventResult, error) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	// Close any existing event stream
	if c.eventConn != nil {
		c.eventConn.Close()
		if c.eventDone != nil {
			close(c.eventDone)
		}
	}

	conn, err := net.DialTimeout("unix", c.socketPath, ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	req := &Request{
		ID:      "event-stream",
		Type:    MsgAttach,
		Payload: AttachRequest{Sources: sources},
	}
	if err := encoder.Encode(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("encode attach request: %w", err)
	}

	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		conn.Close()
		return nil, fmt.Errorf("decode attach response: %w", err)
	}
	if !resp.Success {
		conn.Close()
		return nil, NewServerError("attach", resp.Error)
	}

	c.eventConn = conn
	c.eventEnc = encoder
	c.eventDone = make(chan struct{})
	done := c.eventDone

	events := make(chan EventResult, 16)

	go func() {
		defer close(events)
		defer conn.Close()

		for {
			var event StreamEvent
			if err := decoder.Decode(&event); err != nil {
				select {
				case <-done:
					// Clean shutdown, don't send error
				case events <- EventResult{Err: fmt.Errorf("decode event: %w", err)}:
				}
				return
			}

			select {
			case <-done:
				return
			case events <- EventResult{Event: &event}:
			}
		}
	}()

	return events, nil
}

// StopEventStream detaches, stops the event streaming goroutine and closes
// the event connection.
func (c *Client) StopEventStream() {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	if c.eventDone != nil {
		close(c.eventDone)
		c.eventDone = nil
	}
	if c.eventConn != nil {
		_ = c.eventConn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.eventEnc.Encode(&Request{ID: "event-stream", Type: MsgDetach})
		c.eventConn.Close()
		c.eventConn = nil
		c.eventEnc = nil
	}
}
