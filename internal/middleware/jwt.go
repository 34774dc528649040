package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/neighborhood-lottery/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the caller's identity in the request context.  Handlers read it back
// with CurrentIdentity; "user_id" (decimal string) and "role" are also set for
// the rate limiter and RequireRole.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			raw := ""
			if strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimPrefix(auth, "Bearer ")
			} else if c.IsWebSocket() {
				// Browsers cannot set headers on a websocket handshake.
				raw = c.QueryParam("token")
			}
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			id, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(identityKey, id)
			c.Set("user_id", strconv.FormatUint(id.UserID, 10))
			c.Set("role", id.Role)
			return next(c)
		}
	}
}
