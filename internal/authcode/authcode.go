// Package authcode implements the OAuth 2.0 Authorization Code Grant
// (RFC 6749 section 4.1) with optional PKCE (RFC 7636) and OpenID Connect
// nonce parameters.
package authcode

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/grant"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
	"github.com/wrale/oauth2-flows/internal/validation"
)

// Phase identifies the step of the flow that failed
type Phase string

// Flow phases
const (
	PhaseAuthorizationURL Phase = "authorization_url"
	PhaseCallback         Phase = "callback"
	PhaseAccessToken      Phase = "access_token"
)

var (
	// ErrStateMismatch indicates the callback state differs from the issued one
	ErrStateMismatch = errors.New("state mismatch")

	// ErrMissingCode indicates a callback without code or error
	ErrMissingCode = errors.New("callback carries no authorization code")

	// ErrMissingAuthorizationURL indicates a provider without authorization endpoint
	ErrMissingAuthorizationURL = errors.New("authorization endpoint URL is required")
)

// Error reports the phase in which the flow failed
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("authorization code flow: %s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CallbackError is an error response delivered to the redirection
// endpoint per RFC 6749 section 4.1.2.1
type CallbackError struct {
	Body oauth.ErrorBody
}

func (e *CallbackError) Error() string {
	if e.Body.ErrorDescription != "" {
		return fmt.Sprintf("authorization denied %q: %s", e.Body.Error, e.Body.ErrorDescription)
	}
	return fmt.Sprintf("authorization denied %q", e.Body.Error)
}

// ProtocolErrorCode returns the error code of the callback
func (e *CallbackError) ProtocolErrorCode() string { return string(e.Body.Error) }

// Flow drives the authorization code grant for providers sharing the
// scope vocabulary S. It is safe for concurrent use.
type Flow[S scope.Scope] struct {
	exchanger *grant.Exchanger[S]
	logger    *slog.Logger
}

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

// NewFlow creates a flow sending requests through client
func NewFlow[S scope.Scope](client endpoint.Client, opts ...Option) *Flow[S] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Flow[S]{
		exchanger: grant.NewExchanger[S](client, o.logger),
		logger:    o.logger,
	}
}

// AuthOption adds optional parameters to the authorization request
type AuthOption func(*authParams)

type authParams struct {
	codeChallenge       string
	codeChallengeMethod string
	nonce               string
	extra               endpoint.Params
}

// WithCodeChallenge adds a PKCE challenge. An empty method defaults to S256.
func WithCodeChallenge(challenge, method string) AuthOption {
	return func(a *authParams) {
		a.codeChallenge = challenge
		a.codeChallengeMethod = method
		if a.codeChallengeMethod == "" {
			a.codeChallengeMethod = "S256"
		}
	}
}

// WithNonce adds the OpenID Connect nonce parameter
func WithNonce(nonce string) AuthOption {
	return func(a *authParams) {
		a.nonce = nonce
	}
}

// WithExtraParams appends caller supplied query parameters
func WithExtraParams(params map[string]string) AuthOption {
	return func(a *authParams) {
		a.extra.Merge(params)
	}
}

// BuildAuthorizationURL renders the authorization request URL. It performs
// no I/O. Parameters already present on the endpoint URL come first,
// followed by response_type, client_id, redirect_uri, scope and state,
// then the PKCE and nonce members, then provider and caller extras.
func (f *Flow[S]) BuildAuthorizationURL(p oauth.AuthorizationCodeProvider, scopes scope.Parameter[S], state string, opts ...AuthOption) (*url.URL, error) {
	u, err := buildAuthorizationURL(p, scopes, state, opts)
	if err != nil {
		return nil, &Error{Phase: PhaseAuthorizationURL, Err: err}
	}
	f.logger.Debug("built authorization URL",
		"host", u.Host,
		"pkce", u.Query().Has("code_challenge"),
	)
	return u, nil
}

func buildAuthorizationURL[S scope.Scope](p oauth.AuthorizationCodeProvider, scopes scope.Parameter[S], state string, opts []AuthOption) (*url.URL, error) {
	if p.ClientID() == "" {
		return nil, oauth.ErrMissingClientID
	}
	u := p.AuthorizationEndpointURL()
	if u == nil {
		return nil, ErrMissingAuthorizationURL
	}
	if err := validation.ValidateState(state); err != nil {
		return nil, err
	}

	var ap authParams
	for _, opt := range opts {
		opt(&ap)
	}

	query := existingQuery(u)
	query.Add("response_type", "code")
	query.Add("client_id", p.ClientID())
	query.AddIfSet("redirect_uri", p.RedirectURI())
	if s := oauth.ScopesFor(p, oauth.GrantAuthorizationCode, scopes); len(s) > 0 {
		query.Add("scope", oauth.JoinScopes(p, s))
	}
	query.Add("state", state)
	if ap.codeChallenge != "" {
		query.Add("code_challenge", ap.codeChallenge)
		query.Add("code_challenge_method", ap.codeChallengeMethod)
	}
	query.AddIfSet("nonce", ap.nonce)

	if ext, ok := p.(oauth.AuthorizationRequestQueryExtender); ok {
		extra, err := ext.AuthorizationRequestQueryExtra()
		if err != nil {
			return nil, fmt.Errorf("authorization request query extension: %w", err)
		}
		query.Merge(extra)
	}
	for _, kv := range ap.extra {
		query.Set(kv.Key, kv.Value)
	}

	u.RawQuery = query.Encode()

	if m, ok := p.(oauth.AuthorizationURLModifier); ok {
		if err := m.ModifyAuthorizationURL(u); err != nil {
			return nil, fmt.Errorf("authorization URL modifier: %w", err)
		}
	}
	return u, nil
}

// existingQuery keeps the parameters already on the endpoint URL in their
// original order (RFC 6749 section 3.1)
func existingQuery(u *url.URL) endpoint.Params {
	var out endpoint.Params
	if u.RawQuery == "" {
		return out
	}
	for _, pair := range strings.Split(u.RawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		out.Add(key, val)
	}
	return out
}

// CallbackOption configures HandleCallback
type CallbackOption func(*callbackParams)

type callbackParams struct {
	codeVerifier string
}

// WithCodeVerifier sends the PKCE verifier with the token request
func WithCodeVerifier(verifier string) CallbackOption {
	return func(c *callbackParams) {
		c.codeVerifier = verifier
	}
}

// Callback is the parsed redirect query
type Callback struct {
	Code  string
	State string
	Err   *CallbackError
}

// ParseCallback splits the redirect query into a code or an error response
func ParseCallback(rawQuery string) (*Callback, error) {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("parsing callback query: %w", err)
	}

	cb := &Callback{
		Code:  q.Get("code"),
		State: q.Get("state"),
	}
	if code := q.Get("error"); code != "" {
		cb.Err = &CallbackError{Body: oauth.ErrorBody{
			Error:            oauth.ErrorCode(code),
			ErrorDescription: q.Get("error_description"),
			ErrorURI:         q.Get("error_uri"),
		}}
	}
	return cb, nil
}

// HandleCallback verifies the redirect query against expectedState and
// exchanges the authorization code for a token. A state mismatch fails
// with ErrStateMismatch before the code or any error member is considered.
func (f *Flow[S]) HandleCallback(ctx context.Context, p oauth.AuthorizationCodeProvider, rawQuery, expectedState string, opts ...CallbackOption) (*oauth.TokenResponse[S], error) {
	cb, err := ParseCallback(rawQuery)
	if err != nil {
		return nil, &Error{Phase: PhaseCallback, Err: err}
	}

	if expectedState == "" || subtle.ConstantTimeCompare([]byte(cb.State), []byte(expectedState)) != 1 {
		f.logger.Warn("authorization callback state mismatch")
		return nil, &Error{Phase: PhaseCallback, Err: ErrStateMismatch}
	}
	if cb.Err != nil {
		f.logger.Info("authorization denied by server",
			"error", string(cb.Err.Body.Error),
			"description", cb.Err.Body.ErrorDescription,
		)
		return nil, &Error{Phase: PhaseCallback, Err: cb.Err}
	}
	if cb.Code == "" {
		return nil, &Error{Phase: PhaseCallback, Err: ErrMissingCode}
	}

	var cp callbackParams
	for _, opt := range opts {
		opt(&cp)
	}

	return f.Exchange(ctx, p, cb.Code, cp.codeVerifier)
}

// Exchange redeems an authorization code at the token endpoint
func (f *Flow[S]) Exchange(ctx context.Context, p oauth.AuthorizationCodeProvider, code, codeVerifier string) (*oauth.TokenResponse[S], error) {
	var params endpoint.Params
	params.Add("code", code)
	params.AddIfSet("redirect_uri", p.RedirectURI())
	params.AddIfSet("code_verifier", codeVerifier)

	tok, err := f.exchanger.Exchange(ctx, p, oauth.GrantAuthorizationCode, params, nil)
	if err != nil {
		return nil, &Error{Phase: PhaseAccessToken, Err: err}
	}
	return tok, nil
}

// PKCE holds a code verifier and its S256 challenge
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// NewPKCE generates a verifier and S256 challenge per RFC 7636
func NewPKCE() PKCE {
	verifier := oauth2.GenerateVerifier()
	return PKCE{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
		Method:    "S256",
	}
}

// AuthOption returns the option adding the challenge to the authorization URL
func (p PKCE) AuthOption() AuthOption {
	return WithCodeChallenge(p.Challenge, p.Method)
}
