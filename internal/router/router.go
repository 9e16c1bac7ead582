package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-exam-api/internal/config"
	"github.com/noah-isme/gema-exam-api/internal/handler"
	"github.com/noah-isme/gema-exam-api/internal/middleware"
	"github.com/noah-isme/gema-exam-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AttemptHandler  *handler.AttemptHandler
	QuestionHandler *handler.QuestionHandler
	GradingHandler  *handler.ExamGradingHandler
	HealthChecks    map[string]handler.DependencyCheck
	JWTMiddleware   fiber.Handler
	// AutosaveLimiter overrides the limiter built from config.
	AutosaveLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	autosaveLimiter := deps.AutosaveLimiter
	if autosaveLimiter == nil {
		autosaveLimiter = middleware.RateLimit("autosave", cfg.AutosaveRateLimit, cfg.AutosaveRateWindow)
	}

	exams := api.Group("/exams", jwtMiddleware)
	submissions := api.Group("/exam-submissions", jwtMiddleware)

	if deps.AttemptHandler != nil {
		deps.AttemptHandler.Register(exams, autosaveLimiter)
		deps.AttemptHandler.RegisterSubmissions(submissions)
	}

	if deps.QuestionHandler != nil {
		deps.QuestionHandler.Register(exams)
	}

	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(submissions)
	}
}
