// Package keycloak adapts a Keycloak realm to the oauth provider model.
// Endpoint URLs are derived from the realm base URL; user info is read
// from the OpenID Connect UserInfo endpoint of the realm.
package keycloak

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
	"github.com/wrale/oauth2-flows/internal/userinfo"
)

// Name is the provider key used for session bookkeeping
const Name = "keycloak"

// Keys of the provider extra map
const (
	ExtraRealmURL    = "realm_url"
	ExtraUserInfoURL = "userinfo_url"
)

var (
	// ErrMissingBaseURL indicates a config without server URL
	ErrMissingBaseURL = errors.New("keycloak base URL is required")

	// ErrMissingRealm indicates a config without realm
	ErrMissingRealm = errors.New("keycloak realm is required")

	// ErrInvalidRealm indicates a realm that is a dot path segment
	ErrInvalidRealm = errors.New("keycloak realm must not be . or ..")
)

// Config holds Keycloak client configuration
type Config struct {
	// BaseURL is the server root, e.g. https://sso.example.com
	BaseURL string

	// Realm is the realm name
	Realm string

	ClientID     string
	ClientSecret string
	RedirectURI  string

	// BasicAuth sends client credentials in the Authorization header
	// instead of the request body
	BasicAuth bool
}

// Provider is a Keycloak realm client
type Provider struct {
	*oauth.BaseProvider
	basicAuth bool
}

var (
	_ oauth.AuthorizationCodeProvider   = (*Provider)(nil)
	_ oauth.DeviceAuthorizationProvider = (*Provider)(nil)
	_ oauth.DefaultScoper[scope.String] = (*Provider)(nil)
	_ oauth.ClientAuthenticator         = (*Provider)(nil)
	_ userinfo.Builder[scope.String]    = (*Provider)(nil)
)

// New builds the provider for the realm in cfg
func New(cfg Config) (*Provider, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrMissingBaseURL
	}
	switch cfg.Realm {
	case "":
		return nil, ErrMissingRealm
	case ".", "..":
		return nil, ErrInvalidRealm
	}

	realmURL := base + "/realms/" + url.PathEscape(cfg.Realm)
	oidc := realmURL + "/protocol/openid-connect"

	bp, err := oauth.NewBaseProvider(oauth.Config{
		ClientID:               cfg.ClientID,
		ClientSecret:           cfg.ClientSecret,
		TokenURL:               oidc + "/token",
		AuthorizationURL:       oidc + "/auth",
		DeviceAuthorizationURL: oidc + "/auth/device",
		RedirectURI:            cfg.RedirectURI,
		Extra: map[string]any{
			ExtraRealmURL:    realmURL,
			ExtraUserInfoURL: oidc + "/userinfo",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("keycloak provider: %w", err)
	}

	return &Provider{BaseProvider: bp, basicAuth: cfg.BasicAuth}, nil
}

// RealmURL returns the realm base URL
func (p *Provider) RealmURL() string {
	u, _ := oauth.ExtraString(p, ExtraRealmURL)
	return u
}

// UserInfoURL returns the OpenID Connect UserInfo endpoint
func (p *Provider) UserInfoURL() string {
	u, _ := oauth.ExtraString(p, ExtraUserInfoURL)
	return u
}

// DefaultScopes requests openid for the grants that yield an ID token
func (p *Provider) DefaultScopes(grant oauth.GrantType) []scope.String {
	switch grant {
	case oauth.GrantAuthorizationCode, oauth.GrantDeviceCode, oauth.GrantPassword:
		return []scope.String{"openid"}
	default:
		return nil
	}
}

// ClientAuthStyle implements oauth.ClientAuthenticator
func (p *Provider) ClientAuthStyle(oauth.GrantType) oauth2.AuthStyle {
	if p.basicAuth {
		return oauth2.AuthStyleInHeader
	}
	return oauth2.AuthStyleInParams
}

// Build implements userinfo.Builder. Tokens obtained without the openid
// scope are not accepted by the UserInfo endpoint; client credentials
// tokens carry no end user at all.
func (p *Provider) Build(info userinfo.GrantInfo[scope.String], token *oauth.TokenResponse[scope.String]) (userinfo.Outcome, error) {
	if info.Grant == oauth.GrantClientCredentials {
		return userinfo.None(), nil
	}
	granted := token.Scope
	if len(granted) == 0 {
		granted = info.Scopes
	}
	if !granted.Contains("openid") {
		return userinfo.None(), nil
	}

	ep, err := userinfo.NewJSONEndpoint(userinfo.Config{
		EndpointURL: p.UserInfoURL(),
		FieldMapping: &userinfo.FieldMapping{
			NameField: "preferred_username",
		},
	}, token.AccessToken)
	if err != nil {
		return userinfo.Outcome{}, err
	}
	return userinfo.Respond(ep), nil
}
