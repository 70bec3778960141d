package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/partner-portal/internal/model"
)

// Context keys set by JWTAuth.
const (
	identityKey = "identity"
	userIDKey   = "user_id"
)

// IdentityFrom returns the authenticated caller stored by JWTAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok && id.Email != ""
}

// SetIdentity stores the caller on the context.  Tests use it to bypass
// token parsing.
func SetIdentity(c echo.Context, id model.Identity) {
	c.Set(identityKey, id)
	c.Set(userIDKey, userKey(id))
}

// userKey identifies the caller in cache and rate limit keys.  Agencies are
// joined by email, so the email is the stable key; "anon" otherwise.
func userKey(id model.Identity) string {
	if e := strings.ToLower(strings.TrimSpace(id.Email)); e != "" {
		return e
	}
	if id.Subject != "" {
		return id.Subject
	}
	return "anon"
}

func currentUserID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok && s != "" {
		return s
	}
	return "anon"
}
