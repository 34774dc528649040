package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/neighborhood-lottery/internal/config"
)

// windowScript counts one hit in the current window and returns
// {count, milliseconds until the window resets}.
var windowScript = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return { n, ttl }
`)

// NewWriteQuota caps selection writes per user (or per IP) in a fixed window
// shared by every server instance.  Over the quota the caller gets 429 with
// the same BLOCKED_BY_RATE_LIMIT code as the submission lock.  Redis errors
// let the request through.
func NewWriteQuota(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	window := cfg.Window.Milliseconds()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := quotaKey(cfg, c)
			res, err := windowScript.Run(c.Request().Context(), rdb, []string{key}, window).Int64Slice()
			if err != nil || len(res) != 2 {
				c.Logger().Warnf("ratelimit: key=%s: %v", key, err)
				return next(c)
			}
			count, ttl := res[0], res[1]

			remaining := int64(cfg.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(cfg.Limit) {
				secs := (ttl + 999) / 1000
				h.Set("Retry-After", strconv.FormatInt(secs, 10))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "rate limit exceeded",
					"code":        "BLOCKED_BY_RATE_LIMIT",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

// quotaKey is prefix:scope:who:route.  Anonymous callers fall back to IP.
func quotaKey(cfg config.RateLimitConfig, c echo.Context) string {
	who := userID(c)
	scope := strings.ToLower(cfg.Scope)
	if scope == "ip" || who == "anon" {
		scope, who = "ip", c.RealIP()
	}
	return strings.Join([]string{cfg.Prefix, scope, who, c.Request().Method + " " + c.Path()}, ":")
}
