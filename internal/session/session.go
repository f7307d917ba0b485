// Package session keeps the per-login state a client must remember between
// issuing an authorization URL and handling its callback: the state value,
// the PKCE code verifier and the OpenID Connect nonce.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrInvalidState indicates a missing or tampered state value
	ErrInvalidState = errors.New("invalid state")

	// ErrStateNotFound indicates an unknown, expired or already used state
	ErrStateNotFound = errors.New("state not found or expired")

	// ErrEmptySecret indicates a manager built without signing secret
	ErrEmptySecret = errors.New("state signing secret is required")
)

// AuthState is the caller side bookkeeping of one authorization request
type AuthState struct {
	Provider     string    `json:"provider"`
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	Nonce        string    `json:"nonce"`
	CreatedAt    time.Time `json:"created_at"`
}

// CodeChallenge returns the S256 PKCE challenge of the verifier
func (s *AuthState) CodeChallenge() string {
	return oauth2.S256ChallengeFromVerifier(s.CodeVerifier)
}

// Store provides state storage operations. States are single use: Take
// returns and removes them in one step.
type Store interface {
	// Save stores a state with expiry
	Save(ctx context.Context, st *AuthState, expiresIn time.Duration) error

	// Take returns and deletes the state issued for provider
	Take(ctx context.Context, provider, state string) (*AuthState, error)

	// CheckHealth verifies the store is operational
	CheckHealth(ctx context.Context) error
}

// Manager issues and redeems signed state values
type Manager struct {
	store     Store
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

// NewManager creates a new state manager
func NewManager(store Store, secret []byte, expiresIn time.Duration) (*Manager, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &Manager{
		store:     store,
		secret:    secret,
		expiresIn: expiresIn,
		now:       time.Now,
	}, nil
}

// Begin creates and stores a new state for provider together with a
// fresh PKCE verifier and nonce
func (m *Manager) Begin(ctx context.Context, provider string) (*AuthState, error) {
	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}
	nonce, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	st := &AuthState{
		Provider:     provider,
		State:        token + "." + m.sign(provider, token),
		CodeVerifier: oauth2.GenerateVerifier(),
		Nonce:        nonce,
		CreatedAt:    m.now().UTC(),
	}

	if err := m.store.Save(ctx, st, m.expiresIn); err != nil {
		return nil, fmt.Errorf("saving state: %w", err)
	}
	return st, nil
}

// Resume verifies the signature of state and consumes the stored entry
func (m *Manager) Resume(ctx context.Context, provider, state string) (*AuthState, error) {
	if !m.Verify(provider, state) {
		return nil, ErrInvalidState
	}

	st, err := m.store.Take(ctx, provider, state)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	if st.Provider != provider {
		return nil, ErrInvalidState
	}
	return st, nil
}

// Verify checks the HMAC signature of state for provider
func (m *Manager) Verify(provider, state string) bool {
	token, sig, ok := strings.Cut(state, ".")
	if !ok || token == "" {
		return false
	}
	actual, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	expected, _ := base64.RawURLEncoding.DecodeString(m.sign(provider, token))
	return hmac.Equal(expected, actual)
}

// CheckHealth verifies the state manager is operational
func (m *Manager) CheckHealth(ctx context.Context) error {
	if err := m.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("state store health check failed: %w", err)
	}
	return nil
}

// sign binds the token to the provider name so a state issued for one
// provider is rejected by another
func (m *Manager) sign(provider, token string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
