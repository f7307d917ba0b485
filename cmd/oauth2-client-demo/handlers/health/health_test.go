package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHandler(t *testing.T) {
	healthy := CheckerFunc(func(ctx context.Context) error { return nil })
	down := CheckerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checkers   map[string]Checker
		version    string
		wantStatus int
		want       Response
	}{
		{
			name:       "healthy",
			checkers:   map[string]Checker{"sessions": healthy},
			version:    "1.0.0",
			wantStatus: http.StatusOK,
			want: Response{
				Status:  "healthy",
				Version: "1.0.0",
				Details: map[string]any{"sessions": map[string]any{"status": "healthy"}},
			},
		},
		{
			name:       "unhealthy component",
			checkers:   map[string]Checker{"sessions": down, "templates": healthy},
			wantStatus: http.StatusServiceUnavailable,
			want: Response{
				Status:  "unhealthy",
				Version: "unknown",
				Details: map[string]any{
					"sessions":  map[string]any{"status": "unhealthy", "message": "connection refused"},
					"templates": map[string]any{"status": "healthy"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(tt.checkers)
			if tt.version != "" {
				h.WithVersion(tt.version)
			}

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Cache-Control"); got != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", got)
			}

			var got Response
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
