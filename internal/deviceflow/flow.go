package deviceflow

import (
	"context"
	"log/slog"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
)

// UserInteraction shows the user where to authorize the device. It is
// called exactly once per Execute, before polling starts.
// verificationURIComplete is empty when the server did not send one.
type UserInteraction func(userCode, verificationURI, verificationURIComplete string)

// Flow drives the device authorization grant. It holds only the client and
// its configuration, so it is safe for concurrent use.
type Flow[S scope.Scope] struct {
	client endpoint.Client
	opts   options
}

// NewFlow creates a device flow sending requests through client
func NewFlow[S scope.Scope](client endpoint.Client, opts ...Option) *Flow[S] {
	o := options{
		maxRetryCount: DefaultMaxRetryCount,
		sleep:         endpoint.Sleep,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Flow[S]{client: client, opts: o}
}

// Execute runs the full grant: device authorization, a single call to
// interact, then polling until the token is issued, a terminal error body
// arrives, the retry budget is spent or ctx is done.
func (f *Flow[S]) Execute(ctx context.Context, p oauth.DeviceAuthorizationProvider, scopes scope.Parameter[S], interact UserInteraction) (*oauth.TokenResponse[S], error) {
	auth, err := f.Authorize(ctx, p, scopes)
	if err != nil {
		return nil, err
	}

	if interact != nil {
		interact(auth.UserCode, auth.VerificationURI, auth.VerificationURIComplete)
	}

	return f.Poll(ctx, p, auth)
}

// Authorize sends the device authorization request
func (f *Flow[S]) Authorize(ctx context.Context, p oauth.DeviceAuthorizationProvider, scopes scope.Parameter[S]) (*oauth.DeviceAuthorizationResponse, error) {
	ep := &authorizationEndpoint[S]{provider: p, scopes: scopes}

	auth, err := endpoint.Execute[*oauth.DeviceAuthorizationResponse](ctx, f.client, ep)
	if err != nil {
		f.opts.logger.Debug("device authorization failed", "error", err)
		return nil, &Error{Phase: PhaseDeviceAuthorization, Err: err}
	}

	f.opts.logger.Info("device authorization issued",
		"verification_uri", auth.VerificationURI,
		"expires_in", auth.ExpiresIn,
		"interval", auth.PollInterval(),
	)
	return auth, nil
}

// Poll redeems the device code, waiting the server interval between
// attempts. The first attempt is sent immediately.
func (f *Flow[S]) Poll(ctx context.Context, p oauth.Provider, auth *oauth.DeviceAuthorizationResponse) (*oauth.TokenResponse[S], error) {
	ep := newTokenEndpoint[S](p, auth, f.opts.maxRetryCount)

	tok, err := endpoint.ExecuteRetryable[*oauth.TokenResponse[S], oauth.ErrorCode](ctx, f.client, ep,
		endpoint.WithSleeper(f.opts.sleep),
		endpoint.WithLogger(f.opts.logger),
	)
	if err != nil {
		f.opts.logger.Info("device token polling stopped", "error", err)
		return nil, &Error{Phase: PhaseDeviceAccessToken, Err: err}
	}

	f.opts.logger.Info("device authorization completed", "token_type", tok.TokenType)
	return tok, nil
}
