package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/tessro/paira/internal/daemon"
)

// handleLicenseValidate checks a license token against this machine, or
// against the fingerprint supplied by the client.
func (s *Supervisor) handleLicenseValidate(ctx context.Context, req *daemon.Request) *daemon.Response {
	if s.license == nil {
		return errorResponse(req, ErrNoLicenseService.Error())
	}

	var validateReq daemon.LicenseValidateRequest
	if err := decodePayload(req.Payload, &validateReq); err != nil {
		return errorResponse(req, "invalid payload: "+err.Error())
	}

	token := strings.TrimSpace(validateReq.Token)
	if token == "" {
		token = s.licenseToken
	}
	if token == "" {
		return errorResponse(req, "license token required")
	}

	hwid := validateReq.HWID
	if hwid == "" {
		ident, err := s.identity.Resolve(ctx)
		if err != nil {
			return errorResponse(req, fmt.Sprintf("resolve hardware id: %v", err))
		}
		hwid = ident.Hash
	}

	result, err := s.license.Validate(ctx, hwid, token)
	if err != nil {
		return errorResponse(req, err.Error())
	}
	return successResponse(req, daemon.LicenseValidateResponse{
		HWID:   hwid,
		Result: result,
	})
}

// handleUpdateCheck asks the update endpoint for the latest release.
func (s *Supervisor) handleUpdateCheck(ctx context.Context, req *daemon.Request) *daemon.Response {
	if s.license == nil {
		return errorResponse(req, ErrNoLicenseService.Error())
	}
	result, err := s.license.CheckUpdates(ctx)
	if err != nil {
		return errorResponse(req, err.Error())
	}
	return successResponse(req, daemon.UpdateCheckResponse{Result: result})
}
