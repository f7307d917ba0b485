package grant

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
)

func newProvider(t *testing.T, clientID, secret string) *oauth.BaseProvider {
	t.Helper()
	p, err := oauth.NewBaseProvider(oauth.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		TokenURL:     "https://as.example.com/token",
	})
	if err != nil {
		t.Fatalf("NewBaseProvider() error = %v", err)
	}
	return p
}

// recordingClient captures requests and replays a fixed response
type recordingClient struct {
	requests []*endpoint.Request
	status   int
	body     string
	err      error
}

func (c *recordingClient) Respond(ctx context.Context, req *endpoint.Request) (*endpoint.Response, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return &endpoint.Response{StatusCode: c.status, Body: []byte(c.body)}, nil
}

const okBody = `{"access_token":"AT","token_type":"Bearer","expires_in":300}`

func TestTokenEndpointRenderRequest(t *testing.T) {
	p := newProvider(t, "cid", "s3cret")
	params := endpoint.Params{{Key: "username", Value: "alice"}, {Key: "password", Value: "pw"}}
	ep := NewTokenEndpoint(p, oauth.GrantPassword, params, scope.New[scope.String]("read", "write"))

	req, err := ep.RenderRequest()
	if err != nil {
		t.Fatalf("RenderRequest() error = %v", err)
	}

	if req.Method != http.MethodPost {
		t.Errorf("Method = %s, want POST", req.Method)
	}
	if got := req.URL.String(); got != "https://as.example.com/token" {
		t.Errorf("URL = %s", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", got)
	}
	want := "grant_type=password&username=alice&password=pw&scope=read+write&client_id=cid&client_secret=s3cret"
	if got := string(req.Body); got != want {
		t.Errorf("body = %q\nwant %q", got, want)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("Authorization header should not be set for body credentials")
	}
}

func TestTokenEndpointPublicClientOmitsSecret(t *testing.T) {
	p := newProvider(t, "cid", "")
	ep := NewTokenEndpoint[scope.String](p, oauth.GrantClientCredentials, nil, nil)

	req, err := ep.RenderRequest()
	if err != nil {
		t.Fatalf("RenderRequest() error = %v", err)
	}
	if got, want := string(req.Body), "grant_type=client_credentials&client_id=cid"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

// basicProvider authenticates with HTTP Basic
type basicProvider struct {
	*oauth.BaseProvider
}

func (basicProvider) ClientAuthStyle(oauth.GrantType) oauth2.AuthStyle {
	return oauth2.AuthStyleInHeader
}

func TestTokenEndpointBasicAuth(t *testing.T) {
	p := basicProvider{newProvider(t, "my client", "p@ss")}
	ep := NewTokenEndpoint[scope.String](p, oauth.GrantClientCredentials, nil, nil)

	req, err := ep.RenderRequest()
	if err != nil {
		t.Fatalf("RenderRequest() error = %v", err)
	}
	if got := string(req.Body); got != "grant_type=client_credentials" {
		t.Errorf("body = %q, credentials must not be in body", got)
	}
	wantCreds := base64.StdEncoding.EncodeToString([]byte("my+client:p%40ss"))
	if got := req.Header.Get("Authorization"); got != "Basic "+wantCreds {
		t.Errorf("Authorization = %q, want Basic %s", got, wantCreds)
	}
}

func TestTokenEndpointClientIDRequirement(t *testing.T) {
	assertion := endpoint.Params{{Key: "assertion", Value: "eyJ.a.b"}}
	tests := []struct {
		name     string
		provider oauth.Provider
		grant    oauth.GrantType
		params   endpoint.Params
		wantBody string
		wantErr  error
	}{
		{
			name:     "jwt bearer without client",
			provider: newProvider(t, "", ""),
			grant:    oauth.GrantJWTBearer,
			params:   assertion,
			wantBody: "grant_type=urn%3Aietf%3Aparams%3Aoauth%3Agrant-type%3Ajwt-bearer&assertion=eyJ.a.b",
		},
		{
			name:     "jwt bearer without client in basic style",
			provider: basicProvider{newProvider(t, "", "")},
			grant:    oauth.GrantJWTBearer,
			params:   assertion,
			wantBody: "grant_type=urn%3Aietf%3Aparams%3Aoauth%3Agrant-type%3Ajwt-bearer&assertion=eyJ.a.b",
		},
		{
			name:     "jwt bearer with client",
			provider: newProvider(t, "cid", ""),
			grant:    oauth.GrantJWTBearer,
			params:   assertion,
			wantBody: "grant_type=urn%3Aietf%3Aparams%3Aoauth%3Agrant-type%3Ajwt-bearer&assertion=eyJ.a.b&client_id=cid",
		},
		{
			name:     "client credentials without client",
			provider: newProvider(t, "", ""),
			grant:    oauth.GrantClientCredentials,
			wantErr:  oauth.ErrMissingClientID,
		},
		{
			name:     "refresh without client",
			provider: newProvider(t, "", ""),
			grant:    oauth.GrantRefreshToken,
			params:   endpoint.Params{{Key: "refresh_token", Value: "RT"}},
			wantErr:  oauth.ErrMissingClientID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewTokenEndpoint[scope.String](tt.provider, tt.grant, tt.params, nil).RenderRequest()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("RenderRequest() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("RenderRequest() error = %v", err)
			}
			if got := string(req.Body); got != tt.wantBody {
				t.Errorf("body = %q\nwant %q", got, tt.wantBody)
			}
			if got := req.Header.Get("Authorization"); got != "" {
				t.Errorf("Authorization = %q, want none", got)
			}
		})
	}
}

// scopedProvider declares default scopes for every grant
type scopedProvider struct {
	*oauth.BaseProvider
}

func (scopedProvider) DefaultScopes(oauth.GrantType) []scope.String {
	return []scope.String{"openid", "profile"}
}

func TestTokenEndpointDefaultScopes(t *testing.T) {
	p := scopedProvider{newProvider(t, "cid", "")}
	refresh := endpoint.Params{{Key: "refresh_token", Value: "RT"}}
	tests := []struct {
		name   string
		grant  oauth.GrantType
		params endpoint.Params
		scopes scope.Parameter[scope.String]
		want   string
	}{
		{
			name:  "client credentials picks up defaults",
			grant: oauth.GrantClientCredentials,
			want:  "grant_type=client_credentials&scope=openid+profile&client_id=cid",
		},
		{
			name:   "refresh keeps granted scope",
			grant:  oauth.GrantRefreshToken,
			params: refresh,
			want:   "grant_type=refresh_token&refresh_token=RT&client_id=cid",
		},
		{
			name:   "refresh narrows explicitly",
			grant:  oauth.GrantRefreshToken,
			params: refresh,
			scopes: scope.New[scope.String]("openid"),
			want:   "grant_type=refresh_token&refresh_token=RT&scope=openid&client_id=cid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, err := NewTokenEndpoint(p, tt.grant, tt.params, tt.scopes).Form()
			if err != nil {
				t.Fatalf("Form() error = %v", err)
			}
			if got := form.Encode(); got != tt.want {
				t.Errorf("form = %q\nwant %q", got, tt.want)
			}
		})
	}
}

// quirkyProvider implements every token hook
type quirkyProvider struct {
	*oauth.BaseProvider
	bodyErr    error
	replaceReq bool
	parseHook  bool
}

func (q *quirkyProvider) DefaultScopes(oauth.GrantType) []scope.String {
	return []scope.String{"openid"}
}

func (q *quirkyProvider) TokenRequestBodyExtra(grant oauth.GrantType) (map[string]string, error) {
	if q.bodyErr != nil {
		return nil, q.bodyErr
	}
	return map[string]string{"audience": "api", "client_id": "override"}, nil
}

func (q *quirkyProvider) RenderTokenRequest(grant oauth.GrantType, form endpoint.Params) (*endpoint.Request, error) {
	if !q.replaceReq {
		return nil, nil
	}
	req := endpoint.NewRequest(http.MethodPost, q.TokenEndpointURL())
	req.Header.Set("Content-Type", "application/json")
	req.Body = []byte(`{"grant_type":"` + form.Get("grant_type") + `"}`)
	return req, nil
}

func (q *quirkyProvider) RewriteRequest(grant oauth.GrantType, req *endpoint.Request) error {
	req.Header.Set("X-Tenant", "acme")
	return nil
}

func (q *quirkyProvider) ParseTokenResponse(grant oauth.GrantType, resp *endpoint.Response) (*oauth.TokenResponse[scope.String], error) {
	if !q.parseHook {
		return nil, nil
	}
	return &oauth.TokenResponse[scope.String]{AccessToken: "custom", TokenType: "Bearer"}, nil
}

func TestTokenEndpointHooks(t *testing.T) {
	t.Run("body extras defaults and rewriter", func(t *testing.T) {
		q := &quirkyProvider{BaseProvider: newProvider(t, "cid", "")}
		ep := NewTokenEndpoint[scope.String](q, oauth.GrantClientCredentials, nil, nil)

		req, err := ep.RenderRequest()
		if err != nil {
			t.Fatalf("RenderRequest() error = %v", err)
		}
		want := "grant_type=client_credentials&scope=openid&client_id=override&audience=api"
		if got := string(req.Body); got != want {
			t.Errorf("body = %q\nwant %q", got, want)
		}
		if req.Header.Get("X-Tenant") != "acme" {
			t.Error("rewriter was not applied")
		}
	})

	t.Run("renderer replaces request", func(t *testing.T) {
		q := &quirkyProvider{BaseProvider: newProvider(t, "cid", ""), replaceReq: true}
		req, err := NewTokenEndpoint[scope.String](q, oauth.GrantClientCredentials, nil, nil).RenderRequest()
		if err != nil {
			t.Fatalf("RenderRequest() error = %v", err)
		}
		if got := string(req.Body); got != `{"grant_type":"client_credentials"}` {
			t.Errorf("body = %q", got)
		}
		if req.Header.Get("X-Tenant") != "acme" {
			t.Error("rewriter must run after custom renderer")
		}
	})

	t.Run("hook error becomes render error", func(t *testing.T) {
		hookErr := errors.New("no audience configured")
		q := &quirkyProvider{BaseProvider: newProvider(t, "cid", ""), bodyErr: hookErr}
		client := &recordingClient{status: http.StatusOK, body: okBody}

		_, err := NewExchanger[scope.String](client, nil).Exchange(context.Background(), q, oauth.GrantClientCredentials, nil, nil)
		var re *endpoint.RenderError
		if !errors.As(err, &re) {
			t.Fatalf("expected *endpoint.RenderError, got %T: %v", err, err)
		}
		if !errors.Is(err, hookErr) {
			t.Error("hook error should be wrapped")
		}
		if len(client.requests) != 0 {
			t.Error("no request should be sent after a render error")
		}
	})

	t.Run("parser hook overrides and declines", func(t *testing.T) {
		resp := &endpoint.Response{StatusCode: http.StatusOK, Body: []byte(okBody)}

		q := &quirkyProvider{BaseProvider: newProvider(t, "cid", ""), parseHook: true}
		tok, err := NewTokenEndpoint[scope.String](q, oauth.GrantClientCredentials, nil, nil).ParseResponse(resp)
		if err != nil || tok.AccessToken != "custom" {
			t.Errorf("hook result not used: %v, %v", tok, err)
		}

		q.parseHook = false
		tok, err = NewTokenEndpoint[scope.String](q, oauth.GrantClientCredentials, nil, nil).ParseResponse(resp)
		if err != nil || tok.AccessToken != "AT" {
			t.Errorf("standard parser not used after decline: %v, %v", tok, err)
		}
	})
}

func TestExchangeErrors(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		client   *recordingClient
		check    func(t *testing.T, err error)
	}{
		{
			name:     "missing client id",
			clientID: "",
			client:   &recordingClient{status: http.StatusOK, body: okBody},
			check: func(t *testing.T, err error) {
				var re *endpoint.RenderError
				if !errors.As(err, &re) || !errors.Is(err, oauth.ErrMissingClientID) {
					t.Errorf("expected render error wrapping ErrMissingClientID, got %v", err)
				}
			},
		},
		{
			name:     "transport failure",
			clientID: "cid",
			client:   &recordingClient{err: errors.New("connection refused")},
			check: func(t *testing.T, err error) {
				var te *endpoint.TransportError
				if !errors.As(err, &te) {
					t.Errorf("expected *endpoint.TransportError, got %T", err)
				}
			},
		},
		{
			name:     "protocol error passes through",
			clientID: "cid",
			client:   &recordingClient{status: http.StatusUnauthorized, body: `{"error":"invalid_client"}`},
			check: func(t *testing.T, err error) {
				var perr *oauth.ProtocolError
				if !errors.As(err, &perr) || perr.Body.Error != oauth.ErrorCodeInvalidClient {
					t.Errorf("expected invalid_client protocol error, got %v", err)
				}
			},
		},
		{
			name:     "malformed body",
			clientID: "cid",
			client:   &recordingClient{status: http.StatusOK, body: `not json`},
			check: func(t *testing.T, err error) {
				var pe *endpoint.ParseError
				if !errors.As(err, &pe) {
					t.Errorf("expected *endpoint.ParseError, got %T", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t, tt.clientID, "")
			_, err := NewExchanger[scope.String](tt.client, nil).Exchange(context.Background(), p, oauth.GrantClientCredentials, nil, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestExchangeSuccess(t *testing.T) {
	client := &recordingClient{status: http.StatusOK, body: okBody}
	tok, err := NewExchanger[scope.String](client, nil).Exchange(context.Background(), newProvider(t, "cid", ""), oauth.GrantClientCredentials, nil, nil)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	expires := int64(300)
	want := &oauth.TokenResponse[scope.String]{AccessToken: "AT", TokenType: "Bearer", ExpiresIn: &expires}
	if diff := cmp.Diff(want, tok); diff != "" {
		t.Errorf("Exchange() mismatch (-want +got):\n%s", diff)
	}
	if len(client.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(client.requests))
	}
}
