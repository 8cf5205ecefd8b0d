package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"wildcard echoes origin", []string{"*"}, "http://localhost:3000", http.MethodGet, "http://localhost:3000", http.StatusOK},
		{"explicit match", []string{"https://app.example.com"}, "https://app.example.com", http.MethodGet, "https://app.example.com", http.StatusOK},
		{"mismatch", []string{"https://app.example.com"}, "https://evil.example.com", http.MethodGet, "", http.StatusOK},
		{"no origin", []string{"*"}, "", http.MethodGet, "", http.StatusOK},
		{"preflight", []string{"*"}, "http://localhost:3000", http.MethodOptions, "http://localhost:3000", http.StatusNoContent},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/api/state", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("expected allow-origin %q, got %q", tt.wantOrigin, got)
			}
			if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
				t.Fatal("credentials must never be allowed")
			}
		})
	}
}

func TestRendererID(t *testing.T) {
	t.Parallel()

	var got string
	h := RendererID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = RendererIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set(RendererHeaderName, "tablet-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "tablet-1" {
		t.Fatalf("expected header id, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws?renderer=kiosk.2", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "kiosk.2" {
		t.Fatalf("expected query id, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set(RendererHeaderName, "bad id with spaces")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got == "" || got == "bad id with spaces" {
		t.Fatalf("expected a generated id, got %q", got)
	}
}
