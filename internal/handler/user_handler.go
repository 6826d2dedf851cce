package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/middleware"
	"github.com/noah-isme/tutorlink-api/internal/service"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

// UserHandler serves the tutor directory and self-service profile edits.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs the handler.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register attaches routes.
func (h *UserHandler) Register(router fiber.Router, guards Guards) {
	router.Get("/tutors", h.listTutors)
	router.Get("/tutors/:id", h.getProfile)
	router.Put("/profile", chain(guards.authenticated(), h.updateProfile)...)
}

func (h *UserHandler) listTutors(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.service.ListTutors(requestContext(c), dto.UserListRequest{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
		Subject:  c.Query("subject"),
	})
	if err != nil {
		return err
	}

	return utils.OK(c, result, "tutors retrieved", nil)
}

func (h *UserHandler) getProfile(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	profile, err := h.service.GetPublicProfile(requestContext(c), id)
	if err != nil {
		return err
	}

	return utils.OK(c, profile, "tutor retrieved", nil)
}

func (h *UserHandler) updateProfile(c *fiber.Ctx) error {
	var req dto.ProfileUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.service.UpdateProfile(requestContext(c), middleware.ActorFromContext(c).ID, req)
	if err != nil {
		return err
	}

	return utils.OK(c, user, "profile updated", nil)
}
