// Package validation provides validation utilities for OAuth2 request parameters
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URL schemes accepted for server endpoints
const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

// ValidationError represents a parameter validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// ParseEndpointURL parses an authorization server endpoint. The URL must
// be absolute, use http or https and carry no fragment (RFC 6749 section 3.1).
func ParseEndpointURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ValidationError{Field: "endpoint URL", Value: raw, Message: "must be a valid URL"}
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, &ValidationError{Field: "endpoint URL", Value: raw, Message: "must be an absolute URL with scheme and host"}
	}
	if u.Scheme != schemeHTTP && u.Scheme != schemeHTTPS {
		return nil, &ValidationError{Field: "endpoint URL", Value: raw, Message: "must use http or https scheme"}
	}
	if u.Fragment != "" {
		return nil, &ValidationError{Field: "endpoint URL", Value: raw, Message: "must not include a fragment"}
	}

	return u, nil
}

// ParseRedirectURI parses a redirection endpoint per RFC 6749 section
// 3.1.2. Custom schemes are allowed for native applications.
func ParseRedirectURI(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, &ValidationError{Field: "redirect URI", Value: raw, Message: "must be a valid URL"}
	}
	if !u.IsAbs() {
		return nil, &ValidationError{Field: "redirect URI", Value: raw, Message: "must be an absolute URI"}
	}
	if u.Fragment != "" {
		return nil, &ValidationError{Field: "redirect URI", Value: raw, Message: "must not include a fragment"}
	}
	return u, nil
}

// ValidateScopeToken checks a single scope token against the RFC 6749
// section 3.3 grammar: 1*( %x21 / %x23-5B / %x5D-7E )
func ValidateScopeToken(token string) error {
	if token == "" {
		return &ValidationError{Field: "scope", Value: token, Message: "must not be empty"}
	}
	for _, r := range token {
		if r == 0x21 || (r >= 0x23 && r <= 0x5B) || (r >= 0x5D && r <= 0x7E) {
			continue
		}
		return &ValidationError{Field: "scope", Value: token, Message: fmt.Sprintf("contains invalid character %q", r)}
	}
	return nil
}

// ValidateScopes checks every token
func ValidateScopes(tokens []string) error {
	for _, t := range tokens {
		if err := ValidateScopeToken(t); err != nil {
			return err
		}
	}
	return nil
}

// ValidateState checks the state parameter: 1*VSCHAR per RFC 6749 appendix A.5
func ValidateState(state string) error {
	if state == "" {
		return &ValidationError{Field: "state", Value: state, Message: "must not be empty"}
	}
	for _, r := range state {
		if r < 0x20 || r > 0x7E {
			return &ValidationError{Field: "state", Value: state, Message: "must contain only visible ASCII characters"}
		}
	}
	return nil
}
