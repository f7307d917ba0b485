// Package refreshtoken implements a single access token refresh
// (RFC 6749 section 6). Scheduling refreshes is left to the caller.
package refreshtoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/grant"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
)

// ErrMissingRefreshToken is returned when no refresh token is given
var ErrMissingRefreshToken = errors.New("refresh token is required")

// Error wraps a failed refresh request
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("refresh token flow: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Option configures a Flow
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the flow logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Flow redeems refresh tokens
type Flow[S scope.Scope] struct {
	exchanger *grant.Exchanger[S]
}

// NewFlow creates a flow sending requests through client
func NewFlow[S scope.Scope](client endpoint.Client, opts ...Option) *Flow[S] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Flow[S]{exchanger: grant.NewExchanger[S](client, o.logger)}
}

// Execute requests a new access token. Empty scopes keep the originally
// granted scope: no scope member is sent and provider default scopes are
// not applied. When the server omits refresh_token in the response the
// presented token stays valid and is copied over (RFC 6749 section 6).
func (f *Flow[S]) Execute(ctx context.Context, p oauth.Provider, refreshToken string, scopes scope.Parameter[S]) (*oauth.TokenResponse[S], error) {
	if refreshToken == "" {
		return nil, &Error{Err: &endpoint.RenderError{Err: ErrMissingRefreshToken}}
	}

	params := endpoint.Params{{Key: "refresh_token", Value: refreshToken}}
	tok, err := f.exchanger.Exchange(ctx, p, oauth.GrantRefreshToken, params, scopes)
	if err != nil {
		return nil, &Error{Err: err}
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}
