package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSecurityHeaders(t *testing.T) {
	t.Run("allows the inline page", func(t *testing.T) {
		e := echo.New()
		e.Use(SecurityHeaders(""))
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))

		csp := rec.Header().Get("Content-Security-Policy")
		if !strings.Contains(csp, "script-src 'self' 'unsafe-inline'") {
			t.Errorf("Expected inline scripts to be allowed, got %q", csp)
		}
		if !strings.HasSuffix(csp, "frame-ancestors 'self'") {
			t.Errorf("Expected same-origin framing, got %q", csp)
		}
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Error("Expected nosniff header")
		}
		if rec.Header().Get("Strict-Transport-Security") != "" {
			t.Error("Expected no HSTS on plain HTTP")
		}
	})

	t.Run("production domain and proxy https", func(t *testing.T) {
		e := echo.New()
		e.Use(SecurityHeaders("vidfetch.example.com"))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXForwardedProto, "https")
		rec := serve(e, req)

		if csp := rec.Header().Get("Content-Security-Policy"); !strings.HasSuffix(csp, "frame-ancestors https://vidfetch.example.com") {
			t.Errorf("Expected domain framing policy, got %q", csp)
		}
		if rec.Header().Get("Strict-Transport-Security") == "" {
			t.Error("Expected HSTS behind an https proxy")
		}
	})
}

func TestCORSConfig(t *testing.T) {
	tests := []struct {
		domain  string
		origin  string
		allowed bool
	}{
		{"", "http://localhost:5000", true},
		{"", "https://evil.example.com", false},
		{"vidfetch.example.com", "https://vidfetch.example.com", true},
		{"vidfetch.example.com", "http://vidfetch.example.com", false},
		{"localhost:8080", "http://localhost:8080", true},
	}

	for _, tt := range tests {
		e := echo.New()
		e.Use(CORSConfig(tt.domain))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderOrigin, tt.origin)
		rec := serve(e, req)

		got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin) == tt.origin
		if got != tt.allowed {
			t.Errorf("CORSConfig(%q) origin %q allowed = %v, expected %v", tt.domain, tt.origin, got, tt.allowed)
		}
	}
}

func TestRequestID(t *testing.T) {
	t.Run("generates a uuid", func(t *testing.T) {
		e := echo.New()
		e.Use(RequestID())
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))

		if _, err := uuid.Parse(rec.Header().Get(echo.HeaderXRequestID)); err != nil {
			t.Errorf("Expected generated uuid, got %q", rec.Header().Get(echo.HeaderXRequestID))
		}
	})

	t.Run("keeps a client id", func(t *testing.T) {
		e := echo.New()
		e.Use(RequestID())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRequestID, "page-123")
		rec := serve(e, req)

		if rec.Header().Get(echo.HeaderXRequestID) != "page-123" {
			t.Errorf("Expected client id to be kept, got %q", rec.Header().Get(echo.HeaderXRequestID))
		}
	})

	t.Run("replaces an oversized id", func(t *testing.T) {
		e := echo.New()
		e.Use(RequestID())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRequestID, strings.Repeat("x", maxRequestIDLength+1))
		rec := serve(e, req)

		if _, err := uuid.Parse(rec.Header().Get(echo.HeaderXRequestID)); err != nil {
			t.Errorf("Expected oversized id to be replaced, got %q", rec.Header().Get(echo.HeaderXRequestID))
		}
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = original }()

	e := echo.New()
	e.Use(RequestID())
	e.Use(RequestLogger())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	serve(e, req)

	line := buf.String()
	for _, want := range []string{`"method":"GET"`, `"status":200`, `"request_id":"req-1"`, `"op":"http"`} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected log line to contain %s, got %s", want, line)
		}
	}
}
