// Package validation provides validation utilities for OAuth2 request parameters
package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestParseEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		errMsg  string
	}{
		{
			name: "https endpoint",
			raw:  "https://as.example.com/oauth/token",
		},
		{
			name: "http endpoint with port",
			raw:  "http://localhost:8081/realms/demo/protocol/openid-connect/token",
		},
		{
			name: "surrounding whitespace",
			raw:  "  https://as.example.com/token ",
		},
		{
			name:    "relative URL",
			raw:     "/token",
			wantErr: true,
			errMsg:  "absolute URL",
		},
		{
			name:    "unsupported scheme",
			raw:     "ftp://as.example.com/token",
			wantErr: true,
			errMsg:  "http or https",
		},
		{
			name:    "fragment",
			raw:     "https://as.example.com/token#frag",
			wantErr: true,
			errMsg:  "fragment",
		},
		{
			name:    "malformed",
			raw:     "https://as example.com/%zz",
			wantErr: true,
			errMsg:  "valid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseEndpointURL(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEndpointURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errMsg)
				}
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("expected *ValidationError, got %T", err)
				}
				return
			}
			if u.Host == "" {
				t.Error("expected host to be set")
			}
		})
	}
}

func TestParseRedirectURI(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "web client", raw: "https://client.example.com/cb"},
		{name: "native app scheme", raw: "com.example.app:/oauth2redirect"},
		{name: "loopback", raw: "http://127.0.0.1:8400/callback"},
		{name: "relative", raw: "/cb", wantErr: true},
		{name: "fragment", raw: "https://client.example.com/cb#x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRedirectURI(tt.raw); (err != nil) != tt.wantErr {
				t.Errorf("ParseRedirectURI() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateScopeToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "simple", token: "openid"},
		{name: "with colon", token: "read:user"},
		{name: "url scope", token: "https://www.googleapis.com/auth/userinfo.email"},
		{name: "empty", token: "", wantErr: true},
		{name: "space", token: "a b", wantErr: true},
		{name: "double quote", token: `a"b`, wantErr: true},
		{name: "backslash", token: `a\b`, wantErr: true},
		{name: "non ascii", token: "scopé", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateScopeToken(tt.token); (err != nil) != tt.wantErr {
				t.Errorf("ValidateScopeToken(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
		})
	}

	if err := ValidateScopes([]string{"openid", "bad scope"}); err == nil {
		t.Error("ValidateScopes() expected error for invalid token")
	}
}

func TestValidateState(t *testing.T) {
	if err := ValidateState("xyz-123_ABC.~"); err != nil {
		t.Errorf("ValidateState() unexpected error = %v", err)
	}
	if err := ValidateState(""); err == nil {
		t.Error("ValidateState() expected error for empty state")
	}
	if err := ValidateState("line\nbreak"); err == nil {
		t.Error("ValidateState() expected error for control character")
	}
}
