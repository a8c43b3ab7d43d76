// Package license talks to the paira licensing and update service.
package license

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tessro/paira/internal/version"
)

// Errors returned by Client.
var (
	ErrEmptyToken   = errors.New("license token is empty")
	ErrEmptyHWID    = errors.New("hardware id is empty")
	ErrInvalidReply = errors.New("service returned invalid JSON")
)

// DefaultTimeout bounds each request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 1 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s failed: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	LicensePath string
	UpdatesPath string
	Timeout     time.Duration

	// HTTPClient overrides the default client. Its own timeout applies.
	HTTPClient *http.Client
}

// Client calls the license validation and update endpoints. Responses are
// returned as raw JSON; their schema belongs to the service.
type Client struct {
	config Config
	client *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{config: cfg, client: client}
}

type validateRequest struct {
	HWID string `json:"hwid"`
}

// Validate checks a license token against a hardware fingerprint. The call is
// made once; there are no retries.
func (c *Client) Validate(ctx context.Context, hwid, token string) (json.RawMessage, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrEmptyToken
	}
	if hwid == "" {
		return nil, ErrEmptyHWID
	}

	body, err := json.Marshal(validateRequest{HWID: hwid})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.config.LicensePath), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return c.do(req, "license validation")
}

// CheckUpdates fetches the latest release description.
func (c *Client) CheckUpdates(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(c.config.UpdatesPath), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req, "update check")
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

func (c *Client) do(req *http.Request, op string) (json.RawMessage, error) {
	log := slog.With("component", "license", "op", op)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: http request: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	log.Debug("service responded", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if !json.Valid(respBody) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidReply)
	}
	return json.RawMessage(respBody), nil
}
