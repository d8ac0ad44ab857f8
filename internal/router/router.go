package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/studyline/studyline-api/internal/config"
	"github.com/studyline/studyline-api/internal/handler"
	"github.com/studyline/studyline-api/internal/middleware"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CourseHandler     *handler.CourseHandler
	ExamHandler       *handler.ExamHandler
	AttemptHandler    *handler.AttemptHandler
	AssignmentHandler *handler.AssignmentHandler
	CommentHandler    *handler.CommentHandler
	AnalyticsHandler  *handler.AnalyticsHandler
	LiveFeedHandler   *handler.LiveFeedHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	requireInstructor := middleware.RequireRole(models.RoleInstructor, models.RoleAdmin)

	if deps.CourseHandler != nil {
		courses := app.Group("/api/v1/courses", jwtMiddleware)
		deps.CourseHandler.Register(courses)

		manage := app.Group("/api/v1/manage/courses", jwtMiddleware, requireInstructor)
		deps.CourseHandler.RegisterManagement(manage)
	}

	if deps.ExamHandler != nil {
		exams := app.Group("/api/v1/exams", jwtMiddleware)
		deps.ExamHandler.Register(exams)

		manage := app.Group("/api/v1/manage/exams", jwtMiddleware, requireInstructor)
		deps.ExamHandler.RegisterManagement(manage)
	}

	if deps.AttemptHandler != nil {
		// Answer submission is the hot path during a running exam.
		attempts := app.Group("/api/v1/attempts", jwtMiddleware, middleware.RateLimit("attempts", 50, time.Second))
		deps.AttemptHandler.Register(attempts)

		manage := app.Group("/api/v1/manage", jwtMiddleware, requireInstructor)
		deps.AttemptHandler.RegisterManagement(manage)
	}

	if deps.AssignmentHandler != nil {
		assignments := app.Group("/api/v1/assignments", jwtMiddleware)
		deps.AssignmentHandler.Register(assignments)

		manage := app.Group("/api/v1/manage/assignments", jwtMiddleware, requireInstructor)
		deps.AssignmentHandler.RegisterManagement(manage)
	}

	if deps.CommentHandler != nil {
		comments := app.Group("/api/v1/comments", jwtMiddleware)
		deps.CommentHandler.Register(comments)
	}

	if deps.AnalyticsHandler != nil {
		analytics := app.Group("/api/v1/analytics", jwtMiddleware, requireInstructor)
		deps.AnalyticsHandler.Register(analytics)
	}

	if deps.LiveFeedHandler != nil {
		live := app.Group("/api/v1/live", jwtMiddleware)
		deps.LiveFeedHandler.Register(live)
	}
}
