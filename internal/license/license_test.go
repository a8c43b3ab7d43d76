package license

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:     srv.URL + "/",
		LicensePath: "/api/licenses/validate",
		UpdatesPath: "/api/updates/latest",
	})
}

func TestValidate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/licenses/validate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "paira/") {
			t.Errorf("User-Agent = %q", got)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["hwid"] != "abc123" || len(body) != 1 {
			t.Errorf("body = %v, want only hwid", body)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"valid":true,"expires":"2027-01-01"}`)
	})

	result, err := c.Validate(context.Background(), "abc123", "tok-123")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	var got struct {
		Valid   bool   `json:"valid"`
		Expires string `json:"expires"`
	}
	if err := json.Unmarshal(result, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Valid || got.Expires != "2027-01-01" {
		t.Errorf("result = %+v", got)
	}
}

func TestValidateRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "license revoked", http.StatusForbidden)
	})

	_, err := c.Validate(context.Background(), "abc123", "tok")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Validate() = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", se.StatusCode)
	}
	if se.Body != "license revoked" {
		t.Errorf("Body = %q", se.Body)
	}
	if want := "license validation failed: 403 Forbidden: license revoked"; se.Error() != want {
		t.Errorf("Error() = %q, want %q", se.Error(), want)
	}
}

func TestValidateInputs(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `{}`)
	})

	if _, err := c.Validate(context.Background(), "abc", "  "); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("empty token: %v, want ErrEmptyToken", err)
	}
	if _, err := c.Validate(context.Background(), "", "tok"); !errors.Is(err, ErrEmptyHWID) {
		t.Errorf("empty hwid: %v, want ErrEmptyHWID", err)
	}
	if calls != 0 {
		t.Errorf("service called %d times for invalid input", calls)
	}
}

func TestCheckUpdates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/updates/latest" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"version":"1.4.0","url":"https://example.com/paira.msi"}`)
	})

	result, err := c.CheckUpdates(context.Background())
	if err != nil {
		t.Fatalf("CheckUpdates() error = %v", err)
	}
	if string(result) != `{"version":"1.4.0","url":"https://example.com/paira.msi"}` {
		t.Errorf("result = %s", result)
	}
}

func TestCheckUpdatesServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.CheckUpdates(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("CheckUpdates() = %v, want 502 StatusError", err)
	}
	if se.Error() != "update check failed: 502 Bad Gateway" {
		t.Errorf("Error() = %q", se.Error())
	}
}

func TestInvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>maintenance</html>`)
	})

	if _, err := c.CheckUpdates(context.Background()); !errors.Is(err, ErrInvalidReply) {
		t.Errorf("CheckUpdates() = %v, want ErrInvalidReply", err)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, UpdatesPath: "/api/updates/latest"})
	if _, err := c.CheckUpdates(context.Background()); err == nil {
		t.Error("CheckUpdates() against a closed server should fail")
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(Config{BaseURL: srv.URL, UpdatesPath: "/u", Timeout: 50 * time.Millisecond})
	start := time.Now()
	if _, err := c.CheckUpdates(context.Background()); err == nil {
		t.Fatal("CheckUpdates() should time out")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestContextCancel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Validate(ctx, "abc", "tok"); !errors.Is(err, context.Canceled) {
		t.Errorf("Validate() = %v, want context.Canceled", err)
	}
}
