package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/partner-portal/internal/model"
)

// AdminCheck reports whether the caller's agency is flagged as admin.
type AdminCheck func(ctx context.Context, id model.Identity) (bool, error)

// RequireAdmin aborts with 403 unless check confirms the caller is an
// admin.  It must run after JWTAuth.
func RequireAdmin(check AdminCheck) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			isAdmin, err := check(c.Request().Context(), id)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not verify permissions: " + err.Error()})
			}
			if !isAdmin {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
