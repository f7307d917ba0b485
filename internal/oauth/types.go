// Package oauth provides the provider model and the typed request/response
// bodies shared by every OAuth2 grant.
package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-flows/internal/scope"
)

// GrantType identifies the token endpoint grant per RFC 6749 section 4
type GrantType string

// Supported grant types
const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantDeviceCode        GrantType = "urn:ietf:params:oauth:grant-type:device_code"
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantJWTBearer         GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	GrantRefreshToken      GrantType = "refresh_token"
)

// Common errors returned while building requests
var (
	ErrMissingClientID     = errors.New("client id is required")
	ErrMissingClientSecret = errors.New("client secret is required")
	ErrMissingTokenURL     = errors.New("token endpoint URL is required")
	ErrMissingAccessToken  = errors.New("access_token is missing")
	ErrMissingTokenType    = errors.New("token_type is missing")
)

// ErrorCode is the error parameter of an OAuth2 error response. Codes not
// listed below are preserved verbatim, they never fail to parse.
type ErrorCode string

// Error codes defined by RFC 6749 section 5.2 and RFC 8628 section 3.5
const (
	ErrorCodeInvalidRequest       ErrorCode = "invalid_request"
	ErrorCodeInvalidClient        ErrorCode = "invalid_client"
	ErrorCodeInvalidGrant         ErrorCode = "invalid_grant"
	ErrorCodeUnauthorizedClient   ErrorCode = "unauthorized_client"
	ErrorCodeUnsupportedGrantType ErrorCode = "unsupported_grant_type"
	ErrorCodeInvalidScope         ErrorCode = "invalid_scope"
	ErrorCodeAccessDenied         ErrorCode = "access_denied"
	ErrorCodeUnsupportedResponse  ErrorCode = "unsupported_response_type"
	ErrorCodeServerError          ErrorCode = "server_error"
	ErrorCodeTemporarilyUnavail   ErrorCode = "temporarily_unavailable"
	ErrorCodeAuthorizationPending ErrorCode = "authorization_pending"
	ErrorCodeSlowDown             ErrorCode = "slow_down"
	ErrorCodeExpiredToken         ErrorCode = "expired_token"
)

var knownErrorCodes = map[ErrorCode]struct{}{
	ErrorCodeInvalidRequest:       {},
	ErrorCodeInvalidClient:        {},
	ErrorCodeInvalidGrant:         {},
	ErrorCodeUnauthorizedClient:   {},
	ErrorCodeUnsupportedGrantType: {},
	ErrorCodeInvalidScope:         {},
	ErrorCodeAccessDenied:         {},
	ErrorCodeUnsupportedResponse:  {},
	ErrorCodeServerError:          {},
	ErrorCodeTemporarilyUnavail:   {},
	ErrorCodeAuthorizationPending: {},
	ErrorCodeSlowDown:             {},
	ErrorCodeExpiredToken:         {},
}

// Known reports whether the code is defined by RFC 6749 or RFC 8628
func (c ErrorCode) Known() bool {
	_, ok := knownErrorCodes[c]
	return ok
}

// ErrorBody is an OAuth2 error response per RFC 6749 section 5.2
type ErrorBody struct {
	Error            ErrorCode      `json:"error"`
	ErrorDescription string         `json:"error_description,omitempty"`
	ErrorURI         string         `json:"error_uri,omitempty"`
	Extensions       map[string]any `json:"-"`
}

// ProtocolError is a successfully parsed error body returned by the
// authorization server. It is an expected failure outcome, not a parse
// failure.
type ProtocolError struct {
	StatusCode int
	Body       ErrorBody
}

func (e *ProtocolError) Error() string {
	if e.Body.ErrorDescription != "" {
		return fmt.Sprintf("oauth error %q (status %d): %s", e.Body.Error, e.StatusCode, e.Body.ErrorDescription)
	}
	return fmt.Sprintf("oauth error %q (status %d)", e.Body.Error, e.StatusCode)
}

// ProtocolErrorCode returns the error code of the body
func (e *ProtocolError) ProtocolErrorCode() string {
	return string(e.Body.Error)
}

// TokenResponse is a successful access token response per RFC 6749
// section 5.1. It is only built by ParseTokenResponse.
type TokenResponse[S scope.Scope] struct {
	AccessToken  string             `json:"access_token"`
	TokenType    string             `json:"token_type"`
	ExpiresIn    *int64             `json:"expires_in,omitempty"`
	RefreshToken string             `json:"refresh_token,omitempty"`
	Scope        scope.Parameter[S] `json:"scope,omitempty"`
	IDToken      string             `json:"id_token,omitempty"`

	// Extra holds every member not listed above
	Extra map[string]any `json:"-"`
}

// Token converts the response to an *oauth2.Token. issuedAt anchors the
// expiry computed from expires_in.
func (t *TokenResponse[S]) Token(issuedAt time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	if t.ExpiresIn != nil && *t.ExpiresIn > 0 {
		d, _ := Seconds(*t.ExpiresIn)
		tok.Expiry = issuedAt.Add(d)
	}

	raw := make(map[string]any, len(t.Extra)+1)
	for k, v := range t.Extra {
		raw[k] = v
	}
	if t.IDToken != "" {
		raw["id_token"] = t.IDToken
	}
	return tok.WithExtra(raw)
}

// String implements fmt.Stringer, redacting tokens
func (t *TokenResponse[S]) String() string {
	expires := "<none>"
	if t.ExpiresIn != nil {
		expires = strconv.FormatInt(*t.ExpiresIn, 10)
	}
	return fmt.Sprintf("TokenResponse{AccessToken: %s, TokenType: %s, ExpiresIn: %s, RefreshToken: %s, Scope: %q}",
		redact(t.AccessToken), t.TokenType, expires, redact(t.RefreshToken), t.Scope.String())
}

// DeviceAuthorizationResponse is the device authorization response per
// RFC 8628 section 3.2
type DeviceAuthorizationResponse struct {
	// Required fields per RFC 8628 section 3.2
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`

	// Optional verification_uri_complete per RFC 8628 section 3.3.1
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`

	// Interval is the minimum polling interval in seconds, 5 when absent
	Interval int64 `json:"interval,omitempty"`

	// Extra holds every member not listed above
	Extra map[string]any `json:"-"`
}

// DefaultPollInterval is the polling interval used when the device
// authorization response does not carry one (RFC 8628 section 3.2)
const DefaultPollInterval = 5 * time.Second

// PollInterval returns the polling interval declared by the server.
// Values that do not fit a time.Duration fall back to DefaultPollInterval.
func (d *DeviceAuthorizationResponse) PollInterval() time.Duration {
	if d.Interval <= 0 {
		return DefaultPollInterval
	}
	v, ok := Seconds(d.Interval)
	if !ok {
		return DefaultPollInterval
	}
	return v
}

// Lifetime returns how long the device code stays valid, saturating at
// the largest representable duration.
func (d *DeviceAuthorizationResponse) Lifetime() time.Duration {
	v, _ := Seconds(d.ExpiresIn)
	return v
}

const maxSeconds = int64(math.MaxInt64 / int64(time.Second))

// Seconds converts a server supplied count of seconds to a duration.
// Negative counts yield zero and counts beyond the range of time.Duration
// saturate at math.MaxInt64 with ok set to false.
func Seconds(n int64) (d time.Duration, ok bool) {
	switch {
	case n <= 0:
		return 0, n == 0
	case n > maxSeconds:
		return time.Duration(math.MaxInt64), false
	}
	return time.Duration(n) * time.Second, true
}

func redact(s string) string {
	if s == "" {
		return "<empty>"
	}
	return "[REDACTED]"
}

// flexibleInt decodes a JSON number or a numeric string
type flexibleInt int64

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			fv, ferr := n.Float64()
			if ferr != nil {
				return fmt.Errorf("invalid integer %s: %w", n, err)
			}
			v = int64(fv)
		}
		*f = flexibleInt(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number or numeric string: %w", err)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = flexibleInt(v)
	return nil
}
