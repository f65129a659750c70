package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityConfig selects the optional headers.
type SecurityConfig struct {
	// HSTS is only sent when the server sits behind TLS.
	HSTS bool
	// NoStorePrefix marks paths whose responses carry patient data.
	NoStorePrefix string
}

func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{NoStorePrefix: "/api/"}
}

// SecurityHeaders locks the JSON and PDF responses down for browsers.
// Responses under NoStorePrefix are never cached.
func SecurityHeaders(cfg SecurityConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			if cfg.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			if cfg.NoStorePrefix != "" && strings.HasPrefix(c.Request().URL.Path, cfg.NoStorePrefix) {
				h.Set("Cache-Control", "no-store")
				h.Set("Pragma", "no-cache")
			}
			return next(c)
		}
	}
}
