package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jobrunner/tarantula/internal/config"
)

func TestExtractHost(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		expected string
	}{
		{"simple https URL", "https://example.com", "example.com"},
		{"https URL with port", "https://example.com:8080", "example.com"},
		{"URL with path", "https://example.com/path/to/resource", "example.com"},
		{"URL with port and path", "https://example.com:443/path", "example.com"},
		{"deep subdomain", "https://deep.sub.example.com", "deep.sub.example.com"},
		{"localhost", "http://localhost:3000", "localhost"},
		{"IP address", "http://192.168.1.1:8080", "192.168.1.1"},
		{"no scheme", "example.com", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractHost(tt.origin); got != tt.expected {
				t.Errorf("extractHost(%q) = %q, want %q", tt.origin, got, tt.expected)
			}
		})
	}
}

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		pattern  string
		expected bool
	}{
		{"wildcard", "https://anything.com", "*", true},
		{"exact match", "https://maps.example.com", "https://maps.example.com", true},
		{"exact mismatch", "https://maps.example.com", "https://example.com", false},
		{"subdomain wildcard", "https://maps.example.com", "*.example.com", true},
		{"nested subdomain wildcard", "https://a.maps.example.com:8443", "*.example.com", true},
		{"wildcard excludes apex", "https://example.com", "*.example.com", false},
		{"wildcard excludes lookalike", "https://badexample.com", "*.example.com", false},
		{"malformed pattern", "https://example.com", "*example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchOrigin(tt.origin, tt.pattern); got != tt.expected {
				t.Errorf("matchOrigin(%q, %q) = %v, want %v", tt.origin, tt.pattern, got, tt.expected)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://maps.example.com", "*.kr.example.com"}},
	})

	tests := []struct {
		name        string
		method      string
		origin      string
		wantStatus  int
		wantAllowed bool
	}{
		{"allowed origin", http.MethodGet, "https://maps.example.com", http.StatusOK, true},
		{"allowed subdomain", http.MethodGet, "https://seoul.kr.example.com", http.StatusOK, true},
		{"disallowed origin", http.MethodGet, "https://evil.com", http.StatusOK, false},
		{"no origin", http.MethodGet, "", http.StatusOK, false},
		{"preflight", http.MethodOptions, "https://maps.example.com", http.StatusNoContent, true},
		{"preflight from disallowed origin", http.MethodOptions, "https://evil.com", http.StatusNoContent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/search?lon=126.5&lat=37.5", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			env.server.Router().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			allowOrigin := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllowed {
				if allowOrigin != tt.origin {
					t.Errorf("Access-Control-Allow-Origin = %q, want %q", allowOrigin, tt.origin)
				}
				if got := rec.Header().Get("Access-Control-Expose-Headers"); got != RequestIDHeader {
					t.Errorf("Access-Control-Expose-Headers = %q", got)
				}
				if got := rec.Header().Get("Vary"); got != "Origin" {
					t.Errorf("Vary = %q, want Origin", got)
				}
			} else if allowOrigin != "" {
				t.Errorf("Access-Control-Allow-Origin = %q, want empty", allowOrigin)
			}
		})
	}
}

func TestCORSDisabled(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q without configured origins", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	rec = httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
