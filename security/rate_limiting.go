package security

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// ScanRateLimit bounds how often a single gate device (or IP) may hit the
// scan endpoint. Redemption itself is idempotent; this only keeps a
// misbehaving scanner from hammering the store.
func (r *RateLimiter) ScanRateLimit(perMinute int) echo.MiddlewareFunc {
	return r.limit("scan", perMinute)
}

// PurchaseRateLimit bounds purchase attempts per authenticated user.
func (r *RateLimiter) PurchaseRateLimit(perMinute int) echo.MiddlewareFunc {
	return r.limit("purchase", perMinute)
}

// rateLimitScript bumps the counter and stamps the window TTL atomically,
// so a key can never be left without a TTL.
const rateLimitScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

func (r *RateLimiter) limit(scope string, perMinute int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := c.RealIP()
			if userID, ok := c.Get("user_id").(string); ok && userID != "" {
				identity = fmt.Sprintf("user:%s", userID)
			}
			key := fmt.Sprintf("ratelimit:%s:%s", scope, identity)

			ctx := c.Request().Context()
			count, err := r.redis.Eval(ctx, rateLimitScript, []string{key}, time.Minute.Milliseconds()).Int64()
			if err == nil && count > int64(perMinute) {
				return c.JSON(429, map[string]string{
					"error": "Rate limit exceeded. Please try again later.",
				})
			}

			return next(c)
		}
	}
}
