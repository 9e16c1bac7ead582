package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func guardedApp(guard fiber.Handler, userID interface{}, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != nil {
			c.Locals("user_id", userID)
		}
		c.Locals("user_role", role)
		return c.Next()
	})
	app.Use(guard)
	app.Get("/exams/:id/questions", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireTeacherGuard(t *testing.T) {
	cases := []struct {
		name   string
		userID interface{}
		role   string
		status int
	}{
		{name: "teacher", userID: uint(100), role: "Teacher", status: fiber.StatusOK},
		{name: "student", userID: uint(200), role: "student", status: fiber.StatusForbidden},
		{name: "no role", userID: uint(100), role: "", status: fiber.StatusForbidden},
		{name: "anonymous", userID: nil, role: "teacher", status: fiber.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := guardedApp(RequireTeacher(), tc.userID, tc.role)
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/exams/1/questions", nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRequireStudentRejectsTeacher(t *testing.T) {
	app := guardedApp(RequireStudent(), uint(100), "teacher")
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/exams/1/questions", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
