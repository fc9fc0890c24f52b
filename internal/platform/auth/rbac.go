package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/hospital/hospital-backend/internal/platform/apperr"
)

// RequireIdentity rejects requests that carry no identifying claim.
func RequireIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, _ := IdentityFromContext(c.Request().Context())
			if !id.Authenticated() {
				return apperr.Unauthenticated("unauthorized")
			}
			return next(c)
		}
	}
}

// RequireAdmin returns middleware that checks the caller holds at least one
// of the allowed groups. Callers without any identity get 401; identified
// callers outside the allow-list get 403.
func RequireAdmin(allow []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, _ := IdentityFromContext(c.Request().Context())
			if !id.Authenticated() && len(id.Roles) == 0 {
				return apperr.Unauthenticated("unauthorized")
			}
			if !id.Roles.HasAny(allow) {
				return apperr.Forbidden("forbidden")
			}
			return next(c)
		}
	}
}
