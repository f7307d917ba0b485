package userinfo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/validation"
)

// Standard OpenID Connect claim names used when no mapping is configured
const (
	DefaultSubjectField = "sub"
	DefaultNameField    = "name"
	DefaultEmailField   = "email"
)

// ErrMissingSubject is returned when the mapped subject field is empty
var ErrMissingSubject = errors.New("user info response carries no subject")

// FieldMapping maps provider specific fields to UserInfo. Each field is a
// gjson path, so nested values such as "data.id" are supported.
type FieldMapping struct {
	// SubjectField is the path of the user ID (default: "sub")
	SubjectField string

	// NameField is the path of the display name (default: "name")
	NameField string

	// EmailField is the path of the email address (default: "email")
	EmailField string
}

func (m *FieldMapping) subject() string {
	if m == nil || m.SubjectField == "" {
		return DefaultSubjectField
	}
	return m.SubjectField
}

func (m *FieldMapping) name() string {
	if m == nil || m.NameField == "" {
		return DefaultNameField
	}
	return m.NameField
}

func (m *FieldMapping) email() string {
	if m == nil || m.EmailField == "" {
		return DefaultEmailField
	}
	return m.EmailField
}

// Extract builds UserInfo from a JSON document. Numeric subjects, as
// returned by GitHub for example, are rendered in decimal.
func (m *FieldMapping) Extract(body []byte) (*UserInfo, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("user info is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, errors.New("user info is not a JSON object")
	}

	uid := doc.Get(m.subject())
	if !uid.Exists() || uid.String() == "" {
		return nil, ErrMissingSubject
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding user info: %w", err)
	}

	return &UserInfo{
		UID:   uid.String(),
		Name:  doc.Get(m.name()).String(),
		Email: doc.Get(m.email()).String(),
		Raw:   raw,
	}, nil
}

// Config describes a JSON user-info endpoint, such as the OpenID Connect
// UserInfo endpoint or a provider API like GET /user. Authentication is
// always a Bearer token in the Authorization header.
type Config struct {
	// EndpointURL is the URL of the userinfo endpoint (required)
	EndpointURL string

	// HTTPMethod is the HTTP method to use (default: GET)
	HTTPMethod string

	// AdditionalHeaders contains extra headers to include in the request
	AdditionalHeaders map[string]string

	// FieldMapping selects the response fields, standard claims if nil
	FieldMapping *FieldMapping
}

// Validate checks that Config has all required fields and valid values
func (c *Config) Validate() error {
	if c.EndpointURL == "" {
		return errors.New("endpoint_url is required")
	}
	if _, err := validation.ParseEndpointURL(c.EndpointURL); err != nil {
		return err
	}
	switch strings.ToUpper(c.HTTPMethod) {
	case "", http.MethodGet, http.MethodPost:
		return nil
	default:
		return fmt.Errorf("unsupported user info method %q", c.HTTPMethod)
	}
}

// JSONEndpoint fetches user info for one access token
type JSONEndpoint struct {
	url         *url.URL
	method      string
	headers     map[string]string
	mapping     *FieldMapping
	accessToken string
}

var _ endpoint.Endpoint[*UserInfo] = (*JSONEndpoint)(nil)

// NewJSONEndpoint builds the endpoint for accessToken
func NewJSONEndpoint(cfg Config, accessToken string) (*JSONEndpoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid user info config: %w", err)
	}
	u, err := validation.ParseEndpointURL(cfg.EndpointURL)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(cfg.HTTPMethod)
	if method == "" {
		method = http.MethodGet
	}

	return &JSONEndpoint{
		url:         u,
		method:      method,
		headers:     cfg.AdditionalHeaders,
		mapping:     cfg.FieldMapping,
		accessToken: accessToken,
	}, nil
}

// RenderRequest implements endpoint.Endpoint
func (e *JSONEndpoint) RenderRequest() (*endpoint.Request, error) {
	if e.accessToken == "" {
		return nil, errors.New("access token is required")
	}
	c := *e.url
	req := endpoint.NewRequest(e.method, &c)
	req.Header.Set("Accept", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", "Bearer "+e.accessToken)
	return req, nil
}

// ParseResponse implements endpoint.Endpoint
func (e *JSONEndpoint) ParseResponse(resp *endpoint.Response) (*UserInfo, error) {
	if !resp.IsSuccess() {
		return nil, endpoint.NewParseError(resp, fmt.Errorf("user info request failed with status %d", resp.StatusCode))
	}
	info, err := e.mapping.Extract(resp.Body)
	if err != nil {
		return nil, endpoint.NewParseError(resp, err)
	}
	return info, nil
}

// FromTokenExtra derives user info from members of the token response
// itself, for providers returning the user id alongside the token. It
// returns nil when the mapped subject is absent.
func FromTokenExtra(mapping *FieldMapping, extra map[string]any) *UserInfo {
	if len(extra) == 0 {
		return nil
	}
	body, err := json.Marshal(extra)
	if err != nil {
		return nil
	}
	info, err := mapping.Extract(body)
	if err != nil {
		return nil
	}
	return info
}
