package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/middleware"
	"github.com/noah-isme/tutorlink-api/internal/service"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

// ApplicationHandler exposes tutor applications and the owner's decisions on them.
type ApplicationHandler struct {
	service service.ApplicationService
	logger  zerolog.Logger
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(service service.ApplicationService, logger zerolog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service: service,
		logger:  logger.With().Str("component", "application_handler").Logger(),
	}
}

// Register attaches routes.
func (h *ApplicationHandler) Register(router fiber.Router, guards Guards) {
	router.Post("/", chain(guards.authenticated(authz.RoleTutor), h.apply)...)
	router.Get("/mine", chain(guards.authenticated(authz.RoleTutor, authz.RoleStudent), h.listMine)...)
	router.Get("/:id", chain(guards.authenticated(), h.get)...)
	router.Put("/:id", chain(guards.authenticated(authz.RoleTutor), h.update)...)
	router.Patch("/:id/withdraw", chain(guards.authenticated(authz.RoleTutor), h.withdraw)...)
	router.Patch("/:id/status", chain(guards.authenticated(authz.RoleStudent, authz.RoleAdmin), h.updateStatus)...)
}

func (h *ApplicationHandler) apply(c *fiber.Ctx) error {
	var req dto.ApplicationCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	application, err := h.service.Apply(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return err
	}

	requestLogger(h.logger, c).Info().
		Uint("application_id", application.ID).
		Uint("tuition_id", application.TuitionID).
		Msg("application submitted")
	return utils.Created(c, application, "application submitted")
}

func (h *ApplicationHandler) listMine(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.service.ListMine(requestContext(c), middleware.ActorFromContext(c), dto.ApplicationListRequest{
		Page:     page,
		PageSize: pageSize,
		Status:   c.Query("status"),
	})
	if err != nil {
		return err
	}

	return utils.OK(c, result, "applications retrieved", nil)
}

func (h *ApplicationHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	application, err := h.service.Get(requestContext(c), middleware.ActorFromContext(c), id)
	if err != nil {
		return err
	}

	return utils.OK(c, application, "application retrieved", nil)
}

func (h *ApplicationHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req dto.ApplicationUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	application, err := h.service.Update(requestContext(c), middleware.ActorFromContext(c), id, req)
	if err != nil {
		return err
	}

	return utils.OK(c, application, "application updated", nil)
}

func (h *ApplicationHandler) withdraw(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	application, err := h.service.Withdraw(requestContext(c), middleware.ActorFromContext(c), id)
	if err != nil {
		return err
	}

	return utils.OK(c, application, "application withdrawn", nil)
}

func (h *ApplicationHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req dto.ApplicationStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	application, err := h.service.UpdateStatus(requestContext(c), middleware.ActorFromContext(c), id, req)
	if err != nil {
		return err
	}

	return utils.OK(c, application, "application status updated", nil)
}
