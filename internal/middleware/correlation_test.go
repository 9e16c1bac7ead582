package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDPropagatesOrReplaces(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		require.Equal(t, GetCorrelationID(c), CorrelationIDFromContext(c.UserContext()))
		return c.SendString(GetCorrelationID(c))
	})

	call := func(header string) string {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("X-Correlation-ID", header)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.Header.Get("X-Correlation-ID")
	}

	require.Equal(t, "req-42.a_b", call("req-42.a_b"))

	generated := call("")
	require.Len(t, generated, 36)

	require.NotEqual(t, "bad id<script>", call("bad id<script>"))
	require.Len(t, call(strings.Repeat("a", 65)), 36)
}
