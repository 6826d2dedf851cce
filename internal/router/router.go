package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/config"
	"github.com/noah-isme/tutorlink-api/internal/handler"
	"github.com/noah-isme/tutorlink-api/internal/middleware"
	"github.com/noah-isme/tutorlink-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler             *handler.AuthHandler
	UserHandler             *handler.UserHandler
	TuitionHandler          *handler.TuitionHandler
	ApplicationHandler      *handler.ApplicationHandler
	PaymentHandler          *handler.PaymentHandler
	AdminHandler            *handler.AdminHandler
	StudentDashboardHandler *handler.StudentDashboardHandler
	NotificationHandler     *handler.NotificationHandler
	ReviewHandler           *handler.ReviewHandler
	Readiness               fiber.Handler
	Guards                  handler.Guards
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	if deps.Readiness != nil {
		api.Get("/health/ready", deps.Readiness)
	}

	guards := deps.Guards

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"), guards)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.Register(api.Group("/users"), guards)
	}
	if deps.TuitionHandler != nil {
		deps.TuitionHandler.Register(api.Group("/tuitions"), guards)
	}
	if deps.ApplicationHandler != nil {
		deps.ApplicationHandler.Register(api.Group("/applications"), guards)
	}
	if deps.PaymentHandler != nil {
		deps.PaymentHandler.Register(api.Group("/payments"), guards)
	}
	if deps.StudentDashboardHandler != nil {
		deps.StudentDashboardHandler.Register(api.Group("/student"), guards)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications"), guards)
	}
	if deps.ReviewHandler != nil {
		deps.ReviewHandler.Register(api.Group("/reviews"), guards)
	}

	if deps.AdminHandler != nil {
		adminGuards := []fiber.Handler{}
		for _, h := range []fiber.Handler{guards.Authenticate, guards.Account} {
			if h != nil {
				adminGuards = append(adminGuards, h)
			}
		}
		adminGuards = append(adminGuards, middleware.RequireRole(authz.RoleAdmin))
		deps.AdminHandler.Register(api.Group("/admin", adminGuards...))
	}
}
