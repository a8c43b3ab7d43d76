package supervisor

import (
	"encoding/json"

	"github.com/tessro/paira/internal/daemon"
	"github.com/tessro/paira/internal/worker"
)

// Responses echo the request's type and ID so the client can match them.
func successResponse(req *daemon.Request, payload any) *daemon.Response {
	return &daemon.Response{Type: req.Type, ID: req.ID, Success: true, Payload: payload}
}

func errorResponse(req *daemon.Request, msg string) *daemon.Response {
	return &daemon.Response{Type: req.Type, ID: req.ID, Error: msg}
}

// decodePayload fills dst from a request payload. A nil payload leaves dst
// untouched.
func decodePayload(payload any, dst any) error {
	if payload == nil {
		return nil
	}

	// Payloads arrive as map[string]any after JSON decoding; round-trip them
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// workerStatus converts worker bookkeeping into its wire form.
func workerStatus(info worker.Info, path string) daemon.WorkerStatus {
	return daemon.WorkerStatus{
		State:     string(info.Status),
		PID:       info.PID,
		Token:     info.Token,
		StartedAt: info.StartedAt,
		Path:      path,
	}
}
