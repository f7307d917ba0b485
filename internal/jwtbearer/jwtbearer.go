// Package jwtbearer implements the JWT Bearer authorization grant
// (RFC 7523 section 2.1) and builds the assertions it carries.
package jwtbearer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/grant"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
)

// DefaultAssertionLifetime is used when AssertionConfig.Lifetime is zero
const DefaultAssertionLifetime = 5 * time.Minute

var (
	// ErrMissingAssertion is returned when no assertion is given
	ErrMissingAssertion = errors.New("assertion is required")

	// ErrInvalidAssertionConfig is returned for incomplete assertion claims
	ErrInvalidAssertionConfig = errors.New("assertion requires issuer, subject and audience")
)

// Error wraps a failed JWT bearer grant request
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("jwt bearer flow: %v", e.Err)
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

// Flow exchanges a signed assertion for an access token
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

// Execute posts grant_type=urn:ietf:params:oauth:grant-type:jwt-bearer with
// the given assertion
func (f *Flow[S]) Execute(ctx context.Context, p oauth.Provider, assertion string, scopes scope.Parameter[S]) (*oauth.TokenResponse[S], error) {
	if assertion == "" {
		return nil, &Error{Err: &endpoint.RenderError{Err: ErrMissingAssertion}}
	}

	params := endpoint.Params{{Key: "assertion", Value: assertion}}
	tok, err := f.exchanger.Exchange(ctx, p, oauth.GrantJWTBearer, params, scopes)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return tok, nil
}

// AssertionConfig describes the claims of an RFC 7523 section 3 assertion
type AssertionConfig struct {
	Issuer   string
	Subject  string
	Audience []string

	// Lifetime sets exp relative to now, DefaultAssertionLifetime if zero
	Lifetime time.Duration

	// Method is the signing algorithm, RS256 if nil
	Method jwt.SigningMethod

	// KeyID is set as the kid header when non-empty
	KeyID string

	// Claims holds additional private claims
	Claims map[string]any

	// Now is the clock, time.Now if nil
	Now func() time.Time
}

// NewAssertion signs a JWT usable as a jwt-bearer grant or as a
// private_key_jwt client assertion
func NewAssertion(cfg AssertionConfig, key any) (string, error) {
	if cfg.Issuer == "" || cfg.Subject == "" || len(cfg.Audience) == 0 {
		return "", ErrInvalidAssertionConfig
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultAssertionLifetime
	}
	method := cfg.Method
	if method == nil {
		method = jwt.SigningMethodRS256
	}

	jti, err := randomID()
	if err != nil {
		return "", fmt.Errorf("generating jti: %w", err)
	}

	issued := now()
	registered := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   cfg.Subject,
		Audience:  jwt.ClaimStrings(cfg.Audience),
		ExpiresAt: jwt.NewNumericDate(issued.Add(lifetime)),
		NotBefore: jwt.NewNumericDate(issued),
		IssuedAt:  jwt.NewNumericDate(issued),
		ID:        jti,
	}

	var claims jwt.Claims = registered
	if len(cfg.Claims) > 0 {
		claims = withPrivateClaims(registered, cfg.Claims)
	}

	token := jwt.NewWithClaims(method, claims)
	if cfg.KeyID != "" {
		token.Header["kid"] = cfg.KeyID
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing assertion: %w", err)
	}
	return signed, nil
}

func randomID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// withPrivateClaims flattens registered and private claims into one set.
// Registered claims win on conflict.
func withPrivateClaims(r jwt.RegisteredClaims, private map[string]any) jwt.MapClaims {
	m := make(jwt.MapClaims, len(private)+7)
	for k, v := range private {
		m[k] = v
	}
	m["iss"] = r.Issuer
	m["sub"] = r.Subject
	m["aud"] = r.Audience
	m["exp"] = r.ExpiresAt
	m["nbf"] = r.NotBefore
	m["iat"] = r.IssuedAt
	m["jti"] = r.ID
	return m
}
