package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicPaths lists infrastructure endpoints reachable without a token.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
// Pass it as JWTConfig.Skipper so health checks and metrics scrapes work
// without a bearer token. CORS preflight requests are skipped as well.
func AuthSkipper(c echo.Context) bool {
	if c.Request().Method == http.MethodOptions {
		return true
	}
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the given path is a public infrastructure
// endpoint that should bypass auth and audit middleware.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
