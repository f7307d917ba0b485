package oauth

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-flows/internal/scope"
)

func TestNewBaseProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		errAny  bool
	}{
		{
			name: "complete configuration",
			cfg: Config{
				ClientID:               "cid",
				ClientSecret:           "secret",
				TokenURL:               "https://as.example.com/token",
				AuthorizationURL:       "https://as.example.com/authorize",
				DeviceAuthorizationURL: "https://as.example.com/device",
				RedirectURI:            "https://client.example.com/cb",
				Extra:                  map[string]any{"realm": "demo"},
			},
		},
		{
			name:    "missing token url",
			cfg:     Config{ClientID: "cid"},
			wantErr: ErrMissingTokenURL,
		},
		{
			name:   "relative token url",
			cfg:    Config{TokenURL: "/token"},
			errAny: true,
		},
		{
			name:   "bad authorization url",
			cfg:    Config{TokenURL: "https://as.example.com/token", AuthorizationURL: "mailto:x@example.com"},
			errAny: true,
		},
		{
			name:   "redirect uri with fragment",
			cfg:    Config{TokenURL: "https://as.example.com/token", RedirectURI: "https://client.example.com/cb#f"},
			errAny: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewBaseProvider(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewBaseProvider() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if tt.errAny {
				if err == nil {
					t.Fatal("NewBaseProvider() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBaseProvider() unexpected error = %v", err)
			}

			if p.ClientID() != tt.cfg.ClientID || p.ClientSecret() != tt.cfg.ClientSecret {
				t.Errorf("client credentials not preserved")
			}
			if got := p.TokenEndpointURL().String(); got != tt.cfg.TokenURL {
				t.Errorf("TokenEndpointURL() = %q, want %q", got, tt.cfg.TokenURL)
			}
			if got := p.DeviceAuthorizationEndpointURL().String(); got != tt.cfg.DeviceAuthorizationURL {
				t.Errorf("DeviceAuthorizationEndpointURL() = %q, want %q", got, tt.cfg.DeviceAuthorizationURL)
			}
			if realm, ok := ExtraString(p, "realm"); !ok || realm != "demo" {
				t.Errorf("ExtraString(realm) = %q, %v", realm, ok)
			}
		})
	}
}

func TestBaseProviderURLsAreCopies(t *testing.T) {
	p, err := NewBaseProvider(Config{
		TokenURL:         "https://as.example.com/token",
		AuthorizationURL: "https://as.example.com/authorize",
	})
	if err != nil {
		t.Fatalf("NewBaseProvider() error = %v", err)
	}

	u := p.AuthorizationEndpointURL()
	u.Path = "/mutated"
	if got := p.AuthorizationEndpointURL().Path; got != "/authorize" {
		t.Errorf("provider URL was mutated through accessor: %q", got)
	}
	if p.DeviceAuthorizationEndpointURL() != nil {
		t.Error("unset device endpoint should be nil")
	}
}

type testScope string

type hookedProvider struct {
	*BaseProvider
	defaults []testScope
	style    oauth2.AuthStyle
	sep      string
}

func (h *hookedProvider) DefaultScopes(GrantType) []testScope        { return h.defaults }
func (h *hookedProvider) ClientAuthStyle(GrantType) oauth2.AuthStyle { return h.style }
func (h *hookedProvider) ScopeDelimiter() string                     { return h.sep }

func TestHookHelpers(t *testing.T) {
	base, err := NewBaseProvider(Config{ClientID: "cid", TokenURL: "https://as.example.com/token"})
	if err != nil {
		t.Fatalf("NewBaseProvider() error = %v", err)
	}
	hooked := &hookedProvider{
		BaseProvider: base,
		defaults:     []testScope{"openid", "profile"},
		style:        oauth2.AuthStyleInHeader,
		sep:          ",",
	}

	t.Run("defaults apply only when scopes empty", func(t *testing.T) {
		got := ScopesFor[testScope](hooked, GrantClientCredentials, nil)
		if diff := cmp.Diff(scope.Parameter[testScope]{"openid", "profile"}, got); diff != "" {
			t.Errorf("ScopesFor() mismatch (-want +got):\n%s", diff)
		}
		explicit := scope.New[testScope]("email")
		if got := ScopesFor[testScope](hooked, GrantClientCredentials, explicit); !got.Equal(explicit) {
			t.Errorf("ScopesFor() = %v, want %v", got, explicit)
		}
		if got := ScopesFor[testScope](base, GrantClientCredentials, nil); got != nil {
			t.Errorf("ScopesFor() without hook = %v, want nil", got)
		}
	})

	t.Run("refresh never picks up defaults", func(t *testing.T) {
		if got := ScopesFor[testScope](hooked, GrantRefreshToken, nil); got != nil {
			t.Errorf("ScopesFor() for refresh = %v, want nil", got)
		}
		explicit := scope.New[testScope]("openid")
		if got := ScopesFor[testScope](hooked, GrantRefreshToken, explicit); !got.Equal(explicit) {
			t.Errorf("ScopesFor() for refresh = %v, want %v", got, explicit)
		}
	})

	t.Run("delimiter", func(t *testing.T) {
		s := scope.New[testScope]("a", "b")
		if got := JoinScopes[testScope](hooked, s); got != "a,b" {
			t.Errorf("JoinScopes() with hook = %q, want a,b", got)
		}
		if got := JoinScopes[testScope](base, s); got != "a b" {
			t.Errorf("JoinScopes() without hook = %q, want \"a b\"", got)
		}
	})

	t.Run("auth style", func(t *testing.T) {
		if got := AuthStyle(hooked, GrantPassword); got != oauth2.AuthStyleInHeader {
			t.Errorf("AuthStyle() with hook = %v", got)
		}
		if got := AuthStyle(base, GrantPassword); got != oauth2.AuthStyleInParams {
			t.Errorf("AuthStyle() default = %v", got)
		}
	})
}
