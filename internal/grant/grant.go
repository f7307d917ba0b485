// Package grant implements the access token endpoint shared by every
// OAuth2 grant (RFC 6749 section 3.2).
package grant

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
)

// ErrNilProvider is returned when an endpoint is built without a provider
var ErrNilProvider = errors.New("provider is required")

// TokenEndpoint renders one token request for a grant and parses its
// response. It holds no mutable state and may be reused.
type TokenEndpoint[S scope.Scope] struct {
	provider oauth.Provider
	grant    oauth.GrantType
	params   endpoint.Params
	scopes   scope.Parameter[S]
}

var _ endpoint.Endpoint[*oauth.TokenResponse[scope.String]] = (*TokenEndpoint[scope.String])(nil)

// NewTokenEndpoint builds the endpoint. params holds the grant specific
// members, which are rendered right after grant_type in the given order.
func NewTokenEndpoint[S scope.Scope](p oauth.Provider, grant oauth.GrantType, params endpoint.Params, scopes scope.Parameter[S]) *TokenEndpoint[S] {
	return &TokenEndpoint[S]{
		provider: p,
		grant:    grant,
		params:   params,
		scopes:   scopes,
	}
}

// Grant returns the grant type sent by the endpoint
func (e *TokenEndpoint[S]) Grant() oauth.GrantType { return e.grant }

// Form builds the standard request body:
// grant_type, grant members, scope, then body client credentials.
// Body credentials are omitted when the provider has none and the grant
// does not require client authentication.
func (e *TokenEndpoint[S]) Form() (endpoint.Params, error) {
	if e.provider == nil {
		return nil, ErrNilProvider
	}
	if e.provider.ClientID() == "" && requiresClientID(e.grant) {
		return nil, oauth.ErrMissingClientID
	}

	form := make(endpoint.Params, 0, len(e.params)+4)
	form.Add("grant_type", string(e.grant))
	form = append(form, e.params...)

	if sendsScope(e.grant) {
		if scopes := oauth.ScopesFor(e.provider, e.grant, e.scopes); len(scopes) > 0 {
			form.Add("scope", oauth.JoinScopes(e.provider, scopes))
		}
	}

	if oauth.AuthStyle(e.provider, e.grant) != oauth2.AuthStyleInHeader {
		form.AddIfSet("client_id", e.provider.ClientID())
		form.AddIfSet("client_secret", e.provider.ClientSecret())
	}

	if ext, ok := e.provider.(oauth.TokenRequestBodyExtender); ok {
		extra, err := ext.TokenRequestBodyExtra(e.grant)
		if err != nil {
			return nil, fmt.Errorf("token request body extension: %w", err)
		}
		form.Merge(extra)
	}
	return form, nil
}

// RenderRequest implements endpoint.Endpoint
func (e *TokenEndpoint[S]) RenderRequest() (*endpoint.Request, error) {
	form, err := e.Form()
	if err != nil {
		return nil, err
	}

	var req *endpoint.Request
	if r, ok := e.provider.(oauth.TokenRequestRenderer); ok {
		if req, err = r.RenderTokenRequest(e.grant, form); err != nil {
			return nil, fmt.Errorf("custom token request renderer: %w", err)
		}
	}

	if req == nil {
		tokenURL := e.provider.TokenEndpointURL()
		if tokenURL == nil {
			return nil, oauth.ErrMissingTokenURL
		}
		req = endpoint.NewFormRequest(tokenURL, form)
		if oauth.AuthStyle(e.provider, e.grant) == oauth2.AuthStyleInHeader && e.provider.ClientID() != "" {
			SetBasicAuth(req, e.provider.ClientID(), e.provider.ClientSecret())
		}
	}

	if err := Rewrite(e.provider, e.grant, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ParseResponse implements endpoint.Endpoint
func (e *TokenEndpoint[S]) ParseResponse(resp *endpoint.Response) (*oauth.TokenResponse[S], error) {
	if p, ok := e.provider.(oauth.TokenResponseParser[S]); ok {
		tok, err := p.ParseTokenResponse(e.grant, resp)
		if err != nil {
			return nil, err
		}
		if tok != nil {
			return tok, nil
		}
	}
	return oauth.ParseTokenResponse[S](resp)
}

// SetBasicAuth sets HTTP Basic client authentication. Credentials are form
// encoded first as required by RFC 6749 section 2.3.1.
func SetBasicAuth(req *endpoint.Request, clientID, clientSecret string) {
	creds := url.QueryEscape(clientID) + ":" + url.QueryEscape(clientSecret)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
}

// Rewrite applies the provider RequestRewriter hook, if any
func Rewrite(p oauth.Provider, grant oauth.GrantType, req *endpoint.Request) error {
	rw, ok := p.(oauth.RequestRewriter)
	if !ok {
		return nil
	}
	if err := rw.RewriteRequest(grant, req); err != nil {
		return fmt.Errorf("request rewriter: %w", err)
	}
	return nil
}

// sendsScope reports whether the token request of grant carries a scope.
// The code and device code redemptions reuse the scope already granted
// (RFC 6749 section 4.1.3, RFC 8628 section 3.4).
func sendsScope(grant oauth.GrantType) bool {
	switch grant {
	case oauth.GrantAuthorizationCode, oauth.GrantDeviceCode:
		return false
	default:
		return true
	}
}

// requiresClientID reports whether grant needs a client_id. A JWT bearer
// assertion authenticates on its own (RFC 7523 section 3.1).
func requiresClientID(grant oauth.GrantType) bool {
	return grant != oauth.GrantJWTBearer
}
