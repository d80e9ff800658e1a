package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// DefaultSecurityHeaders are the response headers set for an API that
// serves PHI.
var DefaultSecurityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "0",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Referrer-Policy":           "no-referrer",
	"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
	"Cache-Control":             "no-store",
}

// SecurityHeaders sets DefaultSecurityHeaders on every response. Headers
// named in omit are left out, which lets the sandbox impersonate a
// misconfigured server for negative header checks.
func SecurityHeaders(omit ...string) echo.MiddlewareFunc {
	headers := make(http.Header, len(DefaultSecurityHeaders))
	for k, v := range DefaultSecurityHeaders {
		headers.Set(k, v)
	}
	for _, k := range omit {
		headers.Del(k)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range headers {
				h[k] = v
			}
			return next(c)
		}
	}
}
