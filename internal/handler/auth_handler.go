package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/middleware"
	"github.com/noah-isme/tutorlink-api/internal/service"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

// AuthHandler exposes registration, login and account endpoints.
type AuthHandler struct {
	service      service.AuthService
	loginLimiter fiber.Handler
	logger       zerolog.Logger
}

// NewAuthHandler constructs the handler. loginLimiter may be nil.
func NewAuthHandler(service service.AuthService, loginLimiter fiber.Handler, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service:      service,
		loginLimiter: loginLimiter,
		logger:       logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register attaches routes.
func (h *AuthHandler) Register(router fiber.Router, guards Guards) {
	router.Post("/register", chain(compact(h.loginLimiter), h.register)...)
	router.Post("/login", chain(compact(h.loginLimiter), h.login)...)
	router.Get("/me", chain(guards.authenticated(), h.me)...)
	router.Put("/change-password", chain(guards.authenticated(), h.changePassword)...)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	response, err := h.service.Register(requestContext(c), req)
	if err != nil {
		return err
	}

	requestLogger(h.logger, c).Info().Uint("user_id", response.User.ID).Str("role", response.User.Role).Msg("account registered")
	return utils.Created(c, response, "account registered")
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	response, err := h.service.Login(requestContext(c), req)
	if err != nil {
		return err
	}

	return utils.OK(c, response, "login successful", nil)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	actor := middleware.ActorFromContext(c)
	user, err := h.service.Me(requestContext(c), actor.ID)
	if err != nil {
		return err
	}

	return utils.OK(c, user, "profile retrieved", nil)
}

func (h *AuthHandler) changePassword(c *fiber.Ctx) error {
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	actor := middleware.ActorFromContext(c)
	if err := h.service.ChangePassword(requestContext(c), actor.ID, req); err != nil {
		return err
	}

	return utils.OK(c, nil, "password updated", nil)
}
