package oauth

import (
	"net/url"

	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/scope"
)

// The interfaces below are optional hooks a provider may implement to
// deviate from standard RFC behavior. The engine always checks for the
// hook first and falls back to the standard behavior when the provider
// does not implement it or declines by returning a nil result. Errors
// returned by hooks are wrapped into the endpoint error taxonomy.

// DefaultScoper supplies the scopes used when the caller requests none
type DefaultScoper[S scope.Scope] interface {
	DefaultScopes(grant GrantType) []S
}

// ClientAuthenticator selects how client credentials are sent to the token
// endpoint. oauth2.AuthStyleInHeader selects HTTP Basic authentication;
// any other value sends them in the request body.
type ClientAuthenticator interface {
	ClientAuthStyle(grant GrantType) oauth2.AuthStyle
}

// ScopeDelimiter overrides the space used to join scopes in requests
type ScopeDelimiter interface {
	ScopeDelimiter() string
}

// TokenRequestBodyExtender adds members to token endpoint request bodies
type TokenRequestBodyExtender interface {
	TokenRequestBodyExtra(grant GrantType) (map[string]string, error)
}

// TokenRequestRenderer fully replaces token request rendering. The
// standard form is passed in; returning a nil request declines.
type TokenRequestRenderer interface {
	RenderTokenRequest(grant GrantType, form endpoint.Params) (*endpoint.Request, error)
}

// TokenResponseParser fully replaces token response parsing. Returning
// nil, nil declines and the standard parser runs.
type TokenResponseParser[S scope.Scope] interface {
	ParseTokenResponse(grant GrantType, resp *endpoint.Response) (*TokenResponse[S], error)
}

// RequestRewriter rewrites the outgoing request URL or headers after
// rendering, for every request the engine sends on behalf of the provider.
type RequestRewriter interface {
	RewriteRequest(grant GrantType, req *endpoint.Request) error
}

// AuthorizationRequestQueryExtender adds members to the authorization URL
type AuthorizationRequestQueryExtender interface {
	AuthorizationRequestQueryExtra() (map[string]string, error)
}

// AuthorizationURLModifier rewrites the final authorization URL
type AuthorizationURLModifier interface {
	ModifyAuthorizationURL(u *url.URL) error
}

// DeviceAuthorizationRequestBodyExtender adds members to the device
// authorization request body
type DeviceAuthorizationRequestBodyExtender interface {
	DeviceAuthorizationRequestBodyExtra() (map[string]string, error)
}

// DeviceAuthorizationResponseParser fully replaces device authorization
// response parsing. Returning nil, nil declines.
type DeviceAuthorizationResponseParser interface {
	ParseDeviceAuthorizationResponse(resp *endpoint.Response) (*DeviceAuthorizationResponse, error)
}

// ScopesFor returns scopes, or the provider defaults when scopes is empty.
// A refresh never picks up defaults: an empty scope there keeps the
// originally granted scope (RFC 6749 section 6).
func ScopesFor[S scope.Scope](p Provider, grant GrantType, scopes scope.Parameter[S]) scope.Parameter[S] {
	if len(scopes) > 0 || grant == GrantRefreshToken {
		return scopes
	}
	if d, ok := p.(DefaultScoper[S]); ok {
		return scope.Parameter[S](d.DefaultScopes(grant))
	}
	return scopes
}

// JoinScopes renders scopes with the provider delimiter
func JoinScopes[S scope.Scope](p Provider, scopes scope.Parameter[S]) string {
	sep := scope.Delimiter
	if d, ok := p.(ScopeDelimiter); ok && d.ScopeDelimiter() != "" {
		sep = d.ScopeDelimiter()
	}
	return scopes.Join(sep)
}

// AuthStyle returns the client authentication style for grant
func AuthStyle(p Provider, grant GrantType) oauth2.AuthStyle {
	if a, ok := p.(ClientAuthenticator); ok {
		return a.ClientAuthStyle(grant)
	}
	return oauth2.AuthStyleInParams
}
