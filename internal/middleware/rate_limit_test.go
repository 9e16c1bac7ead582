package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRateLimitKeysByUser(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(len(c.Get("X-User"))))
		return c.Next()
	})
	app.Patch("/autosave", RateLimit("autosave", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodPatch, "/autosave", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusOK, call("a"))
	require.Equal(t, fiber.StatusOK, call("a"))
	require.Equal(t, fiber.StatusTooManyRequests, call("a"))
	require.Equal(t, fiber.StatusOK, call("bb"))
}
