package templates

import (
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// pageRecorder counts the calls render makes on the response
type pageRecorder struct {
	*httptest.ResponseRecorder
	writes      int
	headerCalls int
}

func newPageRecorder() *pageRecorder {
	return &pageRecorder{ResponseRecorder: httptest.NewRecorder()}
}

func (r *pageRecorder) Write(b []byte) (int, error) {
	r.writes++
	return r.ResponseRecorder.Write(b)
}

func (r *pageRecorder) WriteHeader(code int) {
	r.headerCalls++
	r.ResponseRecorder.WriteHeader(code)
}

func mustLoad(t *testing.T) *Templates {
	t.Helper()
	tmpls, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	return tmpls
}

func TestLoadTemplates(t *testing.T) {
	tmpls := mustLoad(t)
	if tmpls.home == nil || tmpls.complete == nil || tmpls.device == nil || tmpls.error == nil {
		t.Error("not all templates loaded")
	}
}

func TestTemplateError(t *testing.T) {
	cause := errors.New("original error")
	err := &TemplateError{
		Cause:   cause,
		Message: "template failed",
	}

	want := "template error: template failed: original error"
	if got := err.Error(); got != want {
		t.Errorf("TemplateError.Error() = %q, want %q", got, want)
	}
	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("errors.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestRenderPages(t *testing.T) {
	tmpls := mustLoad(t)

	tests := []struct {
		name         string
		render       func(w http.ResponseWriter) error
		wantStatus   int
		wantContains []string
	}{
		{
			name: "home",
			render: func(w http.ResponseWriter) error {
				return tmpls.RenderHome(w, HomeData{Provider: "keycloak"})
			},
			wantStatus:   http.StatusOK,
			wantContains: []string{"<title>Sign in</title>", "Sign in with keycloak", "provider defaults", `href="/device"`},
		},
		{
			name: "complete",
			render: func(w http.ResponseWriter) error {
				return tmpls.RenderComplete(w, CompleteData{
					Provider: "keycloak",
					Grant:    "authorization_code",
					Subject:  "f1e2",
					Name:     "alice",
					Scope:    "openid profile",
				})
			},
			wantStatus:   http.StatusOK,
			wantContains: []string{"<title>Signed in</title>", "<dd>alice</dd>", "<dd>openid profile</dd>"},
		},
		{
			name: "device",
			render: func(w http.ResponseWriter) error {
				return tmpls.RenderDevice(w, DeviceData{
					UserCode:                "WDJB-MJHT",
					VerificationURI:         "https://sso.example.com/device",
					VerificationURIComplete: "https://sso.example.com/device?user_code=WDJB-MJHT",
					StatusURL:               "/device/status/abc",
					ExpiresIn:               600,
				})
			},
			wantStatus: http.StatusOK,
			wantContains: []string{
				`<p class="code">WDJB-MJHT</p>`,
				`href="https://sso.example.com/device?user_code=WDJB-MJHT"`,
				"600 seconds",
				`href="/device/status/abc"`,
			},
		},
		{
			name: "error escapes message",
			render: func(w http.ResponseWriter) error {
				return tmpls.RenderError(w, http.StatusBadRequest, ErrorData{
					Title:   "Authorization Failed",
					Message: "<script>alert(1)</script>",
					Code:    "access_denied",
				})
			},
			wantStatus:   http.StatusBadRequest,
			wantContains: []string{"<title>Authorization Failed</title>", "&lt;script&gt;", "<code>access_denied</code>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newPageRecorder()
			if err := tt.render(rec); err != nil {
				t.Fatalf("render error = %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
				t.Errorf("Content-Type = %q", got)
			}
			if rec.writes != 1 {
				t.Errorf("page written in %d calls, want 1", rec.writes)
			}
			body := rec.Body.String()
			for _, want := range tt.wantContains {
				if !strings.Contains(body, want) {
					t.Errorf("output missing %q:\n%s", want, body)
				}
			}
		})
	}
}

func TestRenderFailureWritesNothing(t *testing.T) {
	broken := template.Must(template.New("layout").Parse(`{{define "layout"}}{{.Missing.Field}}{{end}}`))
	rec := newPageRecorder()

	err := render(rec, broken, http.StatusOK, struct{ Missing *struct{ Field string } }{})
	var te *TemplateError
	if !errors.As(err, &te) {
		t.Fatalf("expected TemplateError, got %v", err)
	}
	if rec.headerCalls != 0 || rec.writes != 0 || rec.Body.Len() != 0 {
		t.Error("partial response written on template failure")
	}
	if got := rec.Header().Get("Content-Type"); got != "" {
		t.Errorf("Content-Type = %q set on template failure", got)
	}
}
