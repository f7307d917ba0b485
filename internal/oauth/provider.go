package oauth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/wrale/oauth2-flows/internal/validation"
)

// Provider describes one authorization server: client identity plus the
// token endpoint. Implementations are immutable once constructed and safe
// for concurrent use.
type Provider interface {
	// ClientID returns the client identifier, empty when absent
	ClientID() string

	// ClientSecret returns the client secret, empty for public clients
	ClientSecret() string

	// TokenEndpointURL returns the token endpoint
	TokenEndpointURL() *url.URL

	// Extra returns opaque provider data, such as a base URL needed later
	Extra() map[string]any
}

// AuthorizationCodeProvider is a Provider supporting RFC 6749 section 4.1
type AuthorizationCodeProvider interface {
	Provider

	// AuthorizationEndpointURL returns the authorization endpoint
	AuthorizationEndpointURL() *url.URL

	// RedirectURI returns the registered redirection endpoint, may be empty
	RedirectURI() string
}

// DeviceAuthorizationProvider is a Provider supporting RFC 8628
type DeviceAuthorizationProvider interface {
	Provider

	// DeviceAuthorizationEndpointURL returns the device authorization endpoint
	DeviceAuthorizationEndpointURL() *url.URL
}

// Config holds common OAuth provider configuration
type Config struct {
	ClientID     string
	ClientSecret string

	TokenURL               string
	AuthorizationURL       string
	DeviceAuthorizationURL string
	RedirectURI            string

	Extra map[string]any
}

// BaseProvider implements Provider, AuthorizationCodeProvider and
// DeviceAuthorizationProvider from static configuration. Provider adapters
// embed it and add hooks on top.
type BaseProvider struct {
	clientID         string
	clientSecret     string
	tokenURL         *url.URL
	authorizationURL *url.URL
	deviceURL        *url.URL
	redirectURI      string
	extra            map[string]any
}

var (
	_ AuthorizationCodeProvider   = (*BaseProvider)(nil)
	_ DeviceAuthorizationProvider = (*BaseProvider)(nil)
)

// NewBaseProvider validates cfg and builds a BaseProvider
func NewBaseProvider(cfg Config) (*BaseProvider, error) {
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, ErrMissingTokenURL
	}

	tokenURL, err := validation.ParseEndpointURL(cfg.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid token URL: %w", err)
	}

	p := &BaseProvider{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     tokenURL,
		redirectURI:  cfg.RedirectURI,
	}

	if cfg.AuthorizationURL != "" {
		if p.authorizationURL, err = validation.ParseEndpointURL(cfg.AuthorizationURL); err != nil {
			return nil, fmt.Errorf("invalid authorization URL: %w", err)
		}
	}
	if cfg.DeviceAuthorizationURL != "" {
		if p.deviceURL, err = validation.ParseEndpointURL(cfg.DeviceAuthorizationURL); err != nil {
			return nil, fmt.Errorf("invalid device authorization URL: %w", err)
		}
	}
	if cfg.RedirectURI != "" {
		if _, err := validation.ParseRedirectURI(cfg.RedirectURI); err != nil {
			return nil, fmt.Errorf("invalid redirect URI: %w", err)
		}
	}

	if len(cfg.Extra) > 0 {
		p.extra = make(map[string]any, len(cfg.Extra))
		for k, v := range cfg.Extra {
			p.extra[k] = v
		}
	}

	return p, nil
}

// ClientID implements Provider
func (p *BaseProvider) ClientID() string { return p.clientID }

// ClientSecret implements Provider
func (p *BaseProvider) ClientSecret() string { return p.clientSecret }

// TokenEndpointURL implements Provider. A copy is returned so callers
// cannot mutate the provider.
func (p *BaseProvider) TokenEndpointURL() *url.URL { return cloneURL(p.tokenURL) }

// AuthorizationEndpointURL implements AuthorizationCodeProvider
func (p *BaseProvider) AuthorizationEndpointURL() *url.URL { return cloneURL(p.authorizationURL) }

// DeviceAuthorizationEndpointURL implements DeviceAuthorizationProvider
func (p *BaseProvider) DeviceAuthorizationEndpointURL() *url.URL { return cloneURL(p.deviceURL) }

// RedirectURI implements AuthorizationCodeProvider
func (p *BaseProvider) RedirectURI() string { return p.redirectURI }

// Extra implements Provider
func (p *BaseProvider) Extra() map[string]any { return p.extra }

// ExtraString returns a string value from the provider extra map
func ExtraString(p Provider, key string) (string, bool) {
	extra := p.Extra()
	if extra == nil {
		return "", false
	}
	v, ok := extra[key].(string)
	return v, ok
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}
