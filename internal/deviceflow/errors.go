package deviceflow

import (
	"errors"
	"fmt"

	"github.com/wrale/oauth2-flows/internal/endpoint"
)

// Phase identifies the device flow request that failed
type Phase string

// Flow phases
const (
	// PhaseDeviceAuthorization is the device authorization request (RFC 8628 section 3.1)
	PhaseDeviceAuthorization Phase = "device_authorization"

	// PhaseDeviceAccessToken is the polling token request (RFC 8628 section 3.4)
	PhaseDeviceAccessToken Phase = "device_access_token"
)

// Common errors that may occur during the device authorization flow
var (
	// ErrExhausted indicates polling stopped after the retry budget while
	// the server kept answering authorization_pending or slow_down
	ErrExhausted = endpoint.ErrExhausted

	// ErrMissingDeviceAuthorizationURL indicates a provider without device endpoint
	ErrMissingDeviceAuthorizationURL = errors.New("device authorization endpoint URL is required")
)

// Error reports the phase in which the flow failed. Err is one of the
// endpoint error types, an *oauth.ProtocolError, or a context error.
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device flow: %s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
