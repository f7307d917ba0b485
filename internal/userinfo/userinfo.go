// Package userinfo obtains the identity behind an access token. A provider
// supplies a Builder deciding whether no identity is available, whether it
// can be read from the token response itself, or whether a further request
// to a user-info endpoint is needed.
package userinfo

import (
	"context"
	"errors"
	"fmt"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
)

// ErrNotAvailable is returned by Obtain when the builder yields None
var ErrNotAvailable = errors.New("user info not available")

// GrantInfo describes how a token was obtained
type GrantInfo[S scope.Scope] struct {
	Grant    oauth.GrantType
	Provider oauth.Provider
	Scopes   scope.Parameter[S]
}

// AuthorizationCode describes a token from the authorization code grant
func AuthorizationCode[S scope.Scope](p oauth.AuthorizationCodeProvider, scopes scope.Parameter[S]) GrantInfo[S] {
	return GrantInfo[S]{Grant: oauth.GrantAuthorizationCode, Provider: p, Scopes: scopes}
}

// DeviceCode describes a token from the device authorization grant
func DeviceCode[S scope.Scope](p oauth.DeviceAuthorizationProvider, scopes scope.Parameter[S]) GrantInfo[S] {
	return GrantInfo[S]{Grant: oauth.GrantDeviceCode, Provider: p, Scopes: scopes}
}

// Password describes a token from the resource owner password grant
func Password[S scope.Scope](p oauth.Provider, scopes scope.Parameter[S]) GrantInfo[S] {
	return GrantInfo[S]{Grant: oauth.GrantPassword, Provider: p, Scopes: scopes}
}

// ClientCredentials describes a token from the client credentials grant
func ClientCredentials[S scope.Scope](p oauth.Provider, scopes scope.Parameter[S]) GrantInfo[S] {
	return GrantInfo[S]{Grant: oauth.GrantClientCredentials, Provider: p, Scopes: scopes}
}

// RefreshToken describes a token from the refresh token grant
func RefreshToken[S scope.Scope](p oauth.Provider, scopes scope.Parameter[S]) GrantInfo[S] {
	return GrantInfo[S]{Grant: oauth.GrantRefreshToken, Provider: p, Scopes: scopes}
}

// JWTBearer describes a token from the JWT bearer grant
func JWTBearer[S scope.Scope](p oauth.Provider, scopes scope.Parameter[S]) GrantInfo[S] {
	return GrantInfo[S]{Grant: oauth.GrantJWTBearer, Provider: p, Scopes: scopes}
}

// UserInfo is the normalized identity of the resource owner
type UserInfo struct {
	UID   string         `json:"uid"`
	Name  string         `json:"name,omitempty"`
	Email string         `json:"email,omitempty"`
	Raw   map[string]any `json:"raw,omitempty"`
}

// Kind discriminates an Outcome
type Kind int

// Outcome kinds
const (
	KindNone Kind = iota
	KindStatic
	KindRespond
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindRespond:
		return "respond"
	default:
		return "none"
	}
}

// Outcome is what a Builder decided: no user info, user info already
// known, or an endpoint to call. The zero value is None.
type Outcome struct {
	kind     Kind
	info     *UserInfo
	endpoint endpoint.Endpoint[*UserInfo]
}

// None reports that the provider exposes no user info for the grant
func None() Outcome {
	return Outcome{kind: KindNone}
}

// Static wraps user info derived without a further request
func Static(info *UserInfo) Outcome {
	return Outcome{kind: KindStatic, info: info}
}

// Respond asks for ep to be executed to obtain the user info
func Respond(ep endpoint.Endpoint[*UserInfo]) Outcome {
	return Outcome{kind: KindRespond, endpoint: ep}
}

// Kind returns the outcome discriminator
func (o Outcome) Kind() Kind { return o.kind }

// Static returns the user info of a static outcome
func (o Outcome) Static() (*UserInfo, bool) {
	return o.info, o.kind == KindStatic
}

// Endpoint returns the endpoint of a respond outcome
func (o Outcome) Endpoint() (endpoint.Endpoint[*UserInfo], bool) {
	return o.endpoint, o.kind == KindRespond
}

// Builder decides how user info is obtained for a token
type Builder[S scope.Scope] interface {
	Build(info GrantInfo[S], token *oauth.TokenResponse[S]) (Outcome, error)
}

// BuilderFunc adapts a function to the Builder interface
type BuilderFunc[S scope.Scope] func(info GrantInfo[S], token *oauth.TokenResponse[S]) (Outcome, error)

// Build implements Builder
func (f BuilderFunc[S]) Build(info GrantInfo[S], token *oauth.TokenResponse[S]) (Outcome, error) {
	return f(info, token)
}

// Obtain runs the builder and, when it asks for it, the user-info endpoint
func Obtain[S scope.Scope](ctx context.Context, c endpoint.Client, b Builder[S], info GrantInfo[S], token *oauth.TokenResponse[S]) (*UserInfo, error) {
	if token == nil {
		return nil, errors.New("token is required")
	}

	outcome, err := b.Build(info, token)
	if err != nil {
		return nil, fmt.Errorf("building user info request: %w", err)
	}

	switch outcome.kind {
	case KindStatic:
		if outcome.info == nil {
			return nil, ErrNotAvailable
		}
		return outcome.info, nil
	case KindRespond:
		if outcome.endpoint == nil {
			return nil, ErrNotAvailable
		}
		ui, err := endpoint.Execute(ctx, c, outcome.endpoint)
		if err != nil {
			return nil, fmt.Errorf("fetching user info: %w", err)
		}
		return ui, nil
	default:
		return nil, ErrNotAvailable
	}
}
