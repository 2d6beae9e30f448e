package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"unera/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitPolicy describes one rate limited resource.
type RateLimitPolicy struct {
	// Resource names the counter. Routes sharing a resource share a budget.
	Resource string
	Limit    int
	Window   time.Duration
	// FailClosed answers 503 while the counter store is unreachable. Otherwise
	// requests are let through unlimited.
	FailClosed bool
}

func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func rateLimitKey(resource, subject string) string {
	return fmt.Sprintf("rl:%s:%s", resource, subject)
}

// CheckRateLimit counts one request by subject against p and returns how many
// requests are left in the current fixed window. A negative result means the
// limit was exceeded. Limits are not enforced when APP_ENV is unset, "test",
// "development" or "stress".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, p RateLimitPolicy, subject string) (int, error) {
	if rateLimitBypassed() {
		return p.Limit, nil
	}
	if rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := rateLimitKey(p.Resource, subject)
	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, p.Window)
	}
	return p.Limit - int(cnt), nil
}

// rateLimitSubject keys signed-in viewers by id and everyone else by address.
func rateLimitSubject(c *fiber.Ctx) string {
	if id, ok := c.Locals("viewerID").(uint); ok && id > 0 {
		return "viewer:" + strconv.FormatUint(uint64(id), 10)
	}
	return "ip:" + c.IP()
}

// RateLimit enforces p on every request that reaches it and reports the
// remaining budget in X-RateLimit-* headers.
func RateLimit(rdb *redis.Client, p RateLimitPolicy) fiber.Handler {
	if p.Resource == "" {
		panic("middleware: rate limit policy needs a resource")
	}
	limit := strconv.Itoa(p.Limit)

	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		subject := rateLimitSubject(c)

		remaining, err := CheckRateLimit(ctx, rdb, p, subject)
		if err != nil {
			observability.RateLimitDecisions.WithLabelValues(p.Resource, "unavailable").Inc()
			if !p.FailClosed {
				return c.Next()
			}
			Logger.WarnContext(ctx, "rate limit store unavailable, rejecting request",
				slog.String("resource", p.Resource),
				slog.String("error", err.Error()))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "rate limit unavailable",
			})
		}

		c.Set("X-RateLimit-Limit", limit)
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))

		if remaining < 0 {
			observability.RateLimitDecisions.WithLabelValues(p.Resource, "rejected").Inc()
			retry := p.Window
			if ttl, err := rdb.TTL(ctx, rateLimitKey(p.Resource, subject)).Result(); err == nil && ttl > 0 {
				retry = ttl
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Round(time.Second).Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		observability.RateLimitDecisions.WithLabelValues(p.Resource, "allowed").Inc()
		return c.Next()
	}
}
