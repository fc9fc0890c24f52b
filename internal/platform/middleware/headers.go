package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	allowedHeaders = "*"
	allowedMethods = "GET,PUT,OPTIONS"
)

// ResponseHeaders sets the CORS and security headers every response carries,
// errors included, and answers preflight requests with 204.
func ResponseHeaders(origin string) echo.MiddlewareFunc {
	if origin == "" {
		origin = "*"
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			h.Set("Access-Control-Allow-Methods", allowedMethods)
			if origin != "*" {
				h.Add("Vary", "Origin")
			}

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "no-referrer")

			// Responses carry patient data.
			h.Set("Cache-Control", "no-store")

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
