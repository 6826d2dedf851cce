package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/middleware"
	"github.com/noah-isme/tutorlink-api/internal/service"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

// StudentDashboardHandler serves the per-student summary.
type StudentDashboardHandler struct {
	service service.StudentDashboardService
	logger  zerolog.Logger
}

// NewStudentDashboardHandler constructs the handler.
func NewStudentDashboardHandler(service service.StudentDashboardService, logger zerolog.Logger) *StudentDashboardHandler {
	return &StudentDashboardHandler{
		service: service,
		logger:  logger.With().Str("component", "student_dashboard_handler").Logger(),
	}
}

// Register attaches routes.
func (h *StudentDashboardHandler) Register(router fiber.Router, guards Guards) {
	router.Get("/dashboard", chain(guards.authenticated(authz.RoleStudent), h.get)...)
}

func (h *StudentDashboardHandler) get(c *fiber.Ctx) error {
	dashboard, err := h.service.GetDashboard(requestContext(c), middleware.ActorFromContext(c))
	if err != nil {
		return err
	}

	if dashboard.CacheHit {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
	return utils.OK(c, dashboard, "dashboard retrieved", nil)
}
