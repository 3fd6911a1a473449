package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveCORS(cfg CORSConfig, method, origin string, preflight bool) *httptest.ResponseRecorder {
	handler := CORS(cfg)(okHandler())
	req := httptest.NewRequest(method, "/api/notes", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		preflight  bool
		wantStatus int
		wantOrigin string
	}{
		{name: "no origins configured", allowed: nil, origin: "https://notes.example.com", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "exact origin", allowed: []string{"https://notes.example.com"}, origin: "https://notes.example.com", method: http.MethodGet, wantStatus: http.StatusOK, wantOrigin: "https://notes.example.com"},
		{name: "trailing slash in config", allowed: []string{"http://localhost:5173/"}, origin: "http://localhost:5173", method: http.MethodGet, wantStatus: http.StatusOK, wantOrigin: "http://localhost:5173"},
		{name: "case insensitive", allowed: []string{"HTTPS://NOTES.EXAMPLE.COM"}, origin: "https://notes.example.com", method: http.MethodGet, wantStatus: http.StatusOK, wantOrigin: "https://notes.example.com"},
		{name: "scheme must match", allowed: []string{"https://notes.example.com"}, origin: "http://notes.example.com", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "port must match", allowed: []string{"http://localhost:5173"}, origin: "http://localhost:3000", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "subdomain pattern", allowed: []string{"https://*.example.com"}, origin: "https://eu.app.example.com", method: http.MethodGet, wantStatus: http.StatusOK, wantOrigin: "https://eu.app.example.com"},
		{name: "pattern excludes apex", allowed: []string{"*.example.com"}, origin: "https://example.com", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "pattern excludes lookalike", allowed: []string{"*.example.com"}, origin: "https://evilexample.com", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "bare wildcard ignored with credentials", allowed: []string{"*"}, origin: "https://evil.com", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "opaque origin", allowed: []string{"https://notes.example.com"}, origin: "null", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "disallowed preflight", allowed: []string{"https://notes.example.com"}, origin: "https://evil.com", method: http.MethodOptions, preflight: true, wantStatus: http.StatusForbidden},
		{name: "allowed preflight", allowed: []string{"https://notes.example.com"}, origin: "https://notes.example.com", method: http.MethodOptions, preflight: true, wantStatus: http.StatusNoContent, wantOrigin: "https://notes.example.com"},
		{name: "options without request method is not a preflight", allowed: []string{"https://notes.example.com"}, origin: "https://notes.example.com", method: http.MethodOptions, wantStatus: http.StatusOK, wantOrigin: "https://notes.example.com"},
		{name: "no origin header", allowed: []string{"https://notes.example.com"}, method: http.MethodGet, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.allowed

			rec := serveCORS(cfg, tt.method, tt.origin, tt.preflight)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.origin != "" && rec.Header().Get("Vary") == "" {
				t.Error("Vary not set for a cross-origin request")
			}
		})
	}
}

func TestCORSPreflightHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://notes.example.com"}

	rec := serveCORS(cfg, http.MethodOptions, "https://notes.example.com", true)

	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PATCH") {
		t.Errorf("Access-Control-Allow-Methods = %q, want PATCH", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "If-Match") {
		t.Errorf("Access-Control-Allow-Headers = %q, want If-Match", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true for cookie sessions", got)
	}
}

func TestCORSExposesETag(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://notes.example.com"}

	rec := serveCORS(cfg, http.MethodGet, "https://notes.example.com", false)

	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	for _, name := range []string{"ETag", "Retry-After"} {
		if !strings.Contains(exposed, name) {
			t.Errorf("Access-Control-Expose-Headers = %q, want %s", exposed, name)
		}
	}
}
