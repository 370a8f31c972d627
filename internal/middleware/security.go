package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// pagePolicy lets the embedded form run its inline script and styles
const pagePolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:"

// CORSConfig returns CORS middleware for the configured domain
func CORSConfig(domain string) echo.MiddlewareFunc {
	allowMethods := []string{echo.GET, echo.POST, echo.OPTIONS}
	allowHeaders := []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID}

	if domain == "" {
		// Fallback to localhost for development
		return middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  []string{"http://localhost:5000", "http://127.0.0.1:5000"},
			AllowMethods:  allowMethods,
			AllowHeaders:  allowHeaders,
			ExposeHeaders: []string{echo.HeaderXRequestID, echo.HeaderContentDisposition},
			MaxAge:        86400, // 24 hours
		})
	}

	// Production CORS configuration - restrict to HTTPS only for production
	allowedOrigins := []string{
		"https://" + domain,
	}

	// Only allow HTTP for explicit non-production domains
	if isLocal(domain) {
		allowedOrigins = append(allowedOrigins, "http://"+domain)
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  allowMethods,
		AllowHeaders:  allowHeaders,
		ExposeHeaders: []string{echo.HeaderXRequestID, echo.HeaderContentDisposition},
		MaxAge:        86400,
	})
}

// SecurityHeaders adds security headers to all responses
func SecurityHeaders(domain string) echo.MiddlewareFunc {
	csp := pagePolicy + "; frame-ancestors 'self'"
	if domain != "" && !isLocal(domain) {
		csp = pagePolicy + "; frame-ancestors https://" + domain
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", csp)

			// Permissions Policy - restrict sensitive browser features
			h.Set("Permissions-Policy",
				"geolocation=(), microphone=(), camera=(), payment=(), usb=(), magnetometer=(), gyroscope=()")

			// HSTS - only for HTTPS requests, direct or via proxy
			if c.Request().Header.Get(echo.HeaderXForwardedProto) == "https" || c.IsTLS() {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}

			return next(c)
		}
	}
}

func isLocal(domain string) bool {
	return strings.Contains(domain, "localhost") || strings.Contains(domain, "127.0.0.1")
}
