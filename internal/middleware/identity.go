package middleware

// identity.go holds the context accessors shared by the middleware and the
// handlers.  JWTAuth stores the verified token identity under identityKey.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/neighborhood-lottery/internal/utils"
)

const identityKey = "identity"

// CurrentIdentity returns the identity JWTAuth attached to c.
func CurrentIdentity(c echo.Context) (utils.Identity, bool) {
	id, ok := c.Get(identityKey).(utils.Identity)
	return id, ok && id.UserID != 0
}

// userID returns the caller's id as a string, or "anon" for requests that
// did not pass JWTAuth.
func userID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v
	}
	return "anon"
}
