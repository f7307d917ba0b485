// Package clientcredentials implements the OAuth 2.0 Client Credentials
// Grant (RFC 6749 section 4.4)
package clientcredentials

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/grant"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
)

// Error wraps a failed client credentials request
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("client credentials flow: %v", e.Err)
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

// Flow obtains tokens for the client itself
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

// Execute requests an access token with the client credentials of p
func (f *Flow[S]) Execute(ctx context.Context, p oauth.Provider, scopes scope.Parameter[S]) (*oauth.TokenResponse[S], error) {
	tok, err := f.exchanger.Exchange(ctx, p, oauth.GrantClientCredentials, nil, scopes)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return tok, nil
}
