/**
 * @description
 * Redis sliding-window rate limiter for the wallet endpoints.
 * Challenge issuance and signature verification are the abuse-prone
 * surface, so they get a per-IP window. Fails open when Redis is down;
 * losing rate limiting is preferable to losing sign-in.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 */

package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tokenfolio-project/backend/internal/logger"
)

// RateLimitConfig tunes the sliding window.
type RateLimitConfig struct {
	Redis     *redis.Client
	KeyPrefix string
	Limit     int
	Window    time.Duration
}

// RateLimit returns a per-IP sliding-window limiter. A nil Redis client
// disables limiting entirely (dev/test).
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(c *fiber.Ctx) error {
		if cfg.Redis == nil {
			return c.Next()
		}

		ctx := c.UserContext()
		now := time.Now()
		key := fmt.Sprintf("%s:%s", cfg.KeyPrefix, c.IP())
		threshold := fmt.Sprintf("%d", now.Add(-cfg.Window).UnixNano())

		pipe := cfg.Redis.TxPipeline()
		pipe.ZRemRangeByScore(ctx, key, "-inf", threshold)
		count := pipe.ZCard(ctx, key)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
		pipe.Expire(ctx, key, cfg.Window)

		if _, err := pipe.Exec(ctx); err != nil {
			logger.Error("RateLimit: redis error, failing open: %v", err)
			return c.Next()
		}

		if int(count.Val()) >= cfg.Limit {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
				"code":  "RATE_LIMITED",
			})
		}

		return c.Next()
	}
}
