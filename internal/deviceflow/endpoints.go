package deviceflow

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/grant"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
)

// authorizationEndpoint is the device authorization request
// per RFC 8628 section 3.1
type authorizationEndpoint[S scope.Scope] struct {
	provider oauth.DeviceAuthorizationProvider
	scopes   scope.Parameter[S]
}

func (e *authorizationEndpoint[S]) RenderRequest() (*endpoint.Request, error) {
	p := e.provider
	if p.ClientID() == "" {
		return nil, oauth.ErrMissingClientID
	}
	u := p.DeviceAuthorizationEndpointURL()
	if u == nil {
		return nil, ErrMissingDeviceAuthorizationURL
	}

	basic := oauth.AuthStyle(p, oauth.GrantDeviceCode) == oauth2.AuthStyleInHeader

	var form endpoint.Params
	if !basic {
		form.Add("client_id", p.ClientID())
	}
	if s := oauth.ScopesFor(p, oauth.GrantDeviceCode, e.scopes); len(s) > 0 {
		form.Add("scope", oauth.JoinScopes(p, s))
	}
	if !basic {
		form.AddIfSet("client_secret", p.ClientSecret())
	}

	if ext, ok := p.(oauth.DeviceAuthorizationRequestBodyExtender); ok {
		extra, err := ext.DeviceAuthorizationRequestBodyExtra()
		if err != nil {
			return nil, fmt.Errorf("device authorization body extension: %w", err)
		}
		form.Merge(extra)
	}

	req := endpoint.NewFormRequest(u, form)
	if basic {
		grant.SetBasicAuth(req, p.ClientID(), p.ClientSecret())
	}
	if err := grant.Rewrite(p, oauth.GrantDeviceCode, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (e *authorizationEndpoint[S]) ParseResponse(resp *endpoint.Response) (*oauth.DeviceAuthorizationResponse, error) {
	if h, ok := e.provider.(oauth.DeviceAuthorizationResponseParser); ok {
		out, err := h.ParseDeviceAuthorizationResponse(resp)
		if err != nil {
			return nil, err
		}
		if out != nil {
			return out, nil
		}
	}
	return oauth.ParseDeviceAuthorizationResponse(resp)
}

// tokenEndpoint polls the token endpoint per RFC 8628 section 3.4. The
// interval is fixed from the device authorization response for the whole
// flow; slow_down does not lengthen it.
type tokenEndpoint[S scope.Scope] struct {
	token    *grant.TokenEndpoint[S]
	interval time.Duration
	max      int
}

func newTokenEndpoint[S scope.Scope](p oauth.Provider, auth *oauth.DeviceAuthorizationResponse, maxRetryCount int) *tokenEndpoint[S] {
	var params endpoint.Params
	params.Add("device_code", auth.DeviceCode)

	return &tokenEndpoint[S]{
		token:    grant.NewTokenEndpoint[S](p, oauth.GrantDeviceCode, params, nil),
		interval: auth.PollInterval(),
		max:      maxRetryCount,
	}
}

func (e *tokenEndpoint[S]) RenderRequest(endpoint.RetryContext) (*endpoint.Request, error) {
	return e.token.RenderRequest()
}

// ParseResponse turns authorization_pending and slow_down into retries.
// Every other error body is terminal.
func (e *tokenEndpoint[S]) ParseResponse(resp *endpoint.Response, _ endpoint.RetryContext) (endpoint.Outcome[*oauth.TokenResponse[S], oauth.ErrorCode], error) {
	tok, err := e.token.ParseResponse(resp)
	if err != nil {
		var perr *oauth.ProtocolError
		if errors.As(err, &perr) && isRetryable(perr.Body.Error) {
			return endpoint.Retry[*oauth.TokenResponse[S]](perr.Body.Error), nil
		}
		return endpoint.Outcome[*oauth.TokenResponse[S], oauth.ErrorCode]{}, err
	}
	return endpoint.Done[*oauth.TokenResponse[S], oauth.ErrorCode](tok), nil
}

func (e *tokenEndpoint[S]) NextRetryIn(endpoint.RetryContext) time.Duration { return e.interval }

func (e *tokenEndpoint[S]) MaxRetryCount() int { return e.max }

func isRetryable(code oauth.ErrorCode) bool {
	return code == oauth.ErrorCodeAuthorizationPending || code == oauth.ErrorCodeSlowDown
}
