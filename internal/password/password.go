// Package password implements the OAuth 2.0 Resource Owner Password
// Credentials Grant (RFC 6749 section 4.3)
package password

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

// ErrMissingUsername is returned when no username is given
var ErrMissingUsername = errors.New("username is required")

// Error wraps a failed password grant request
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("password flow: %v", e.Err)
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

// Flow exchanges resource owner credentials for a token
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

// Execute requests an access token for username. The password is sent
// verbatim and may be empty.
func (f *Flow[S]) Execute(ctx context.Context, p oauth.Provider, username, password string, scopes scope.Parameter[S]) (*oauth.TokenResponse[S], error) {
	if username == "" {
		return nil, &Error{Err: &endpoint.RenderError{Err: ErrMissingUsername}}
	}

	params := endpoint.Params{
		{Key: "username", Value: username},
		{Key: "password", Value: password},
	}
	tok, err := f.exchanger.Exchange(ctx, p, oauth.GrantPassword, params, scopes)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return tok, nil
}
