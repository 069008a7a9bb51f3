package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitedApp(t *testing.T, limit int) (*fiber.App, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	app := fiber.New()
	app.Get("/limited", RateLimit(RateLimitConfig{
		Redis:     client,
		KeyPrefix: "test",
		Limit:     limit,
		Window:    time.Minute,
	}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app, mr
}

func TestRateLimitUnderLimit(t *testing.T) {
	app, _ := rateLimitedApp(t, 5)

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i)
	}
}

func TestRateLimitOverLimit(t *testing.T) {
	app, _ := rateLimitedApp(t, 3)

	var last int
	for i := 0; i < 4; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil))
		require.NoError(t, err)
		last = resp.StatusCode
	}
	assert.Equal(t, fiber.StatusTooManyRequests, last)
}

func TestRateLimitResponseCode(t *testing.T) {
	app, _ := rateLimitedApp(t, 1)

	resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/limited", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", decodeBody(t, resp)["code"])
}

func TestRateLimitWindowSlides(t *testing.T) {
	app, mr := rateLimitedApp(t, 1)

	resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/limited", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	// The key expires after the window, so the next request is admitted.
	mr.FastForward(2 * time.Minute)

	resp, err = app.Test(httptest.NewRequest("GET", "/limited", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimitFailsOpenOnRedisError(t *testing.T) {
	app, mr := rateLimitedApp(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		// go-redis retries the failed dials with backoff, which can exceed
		// app.Test's default 1s timeout; give the request room to fail open.
		resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil), 15000)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestRateLimitNilClientDisabled(t *testing.T) {
	app := fiber.New()
	app.Get("/open", RateLimit(RateLimitConfig{Limit: 1}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/open", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}
