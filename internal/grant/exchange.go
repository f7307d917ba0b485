package grant

import (
	"context"
	"log/slog"
	"time"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
)

// Exchanger sends single token requests on behalf of a flow
type Exchanger[S scope.Scope] struct {
	client endpoint.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewExchanger creates an Exchanger. A nil logger uses slog.Default.
func NewExchanger[S scope.Scope](client endpoint.Client, logger *slog.Logger) *Exchanger[S] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exchanger[S]{client: client, logger: logger, now: time.Now}
}

// Client returns the underlying client
func (x *Exchanger[S]) Client() endpoint.Client { return x.client }

// Logger returns the flow logger
func (x *Exchanger[S]) Logger() *slog.Logger { return x.logger }

// Exchange runs one token request. Tokens are never logged.
func (x *Exchanger[S]) Exchange(ctx context.Context, p oauth.Provider, grant oauth.GrantType, params endpoint.Params, scopes scope.Parameter[S]) (*oauth.TokenResponse[S], error) {
	start := x.now()
	ep := NewTokenEndpoint(p, grant, params, scopes)

	tok, err := endpoint.Execute[*oauth.TokenResponse[S]](ctx, x.client, ep)
	if err != nil {
		x.logger.Debug("token request failed",
			"grant_type", string(grant),
			"error", err,
		)
		return nil, err
	}

	attrs := []any{
		"grant_type", string(grant),
		"token_type", tok.TokenType,
		"scope", tok.Scope.String(),
		"duration", x.now().Sub(start),
	}
	if tok.ExpiresIn != nil {
		attrs = append(attrs, "expires_in", *tok.ExpiresIn)
	}
	x.logger.Debug("token request succeeded", attrs...)
	return tok, nil
}
