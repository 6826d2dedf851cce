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

// PaymentHandler exposes the payment-confirmed acceptance flow and payment reads.
type PaymentHandler struct {
	acceptance service.AcceptanceService
	payments   service.PaymentService
	logger     zerolog.Logger
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(acceptance service.AcceptanceService, payments service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		acceptance: acceptance,
		payments:   payments,
		logger:     logger.With().Str("component", "payment_handler").Logger(),
	}
}

// Register attaches routes.
func (h *PaymentHandler) Register(router fiber.Router, guards Guards) {
	router.Post("/intent", chain(guards.authenticated(authz.RoleStudent), h.createIntent)...)
	router.Post("/confirm", chain(guards.authenticated(authz.RoleStudent, authz.RoleAdmin), h.confirm)...)
	router.Get("/mine", chain(guards.authenticated(authz.RoleStudent), h.listMine)...)
	router.Get("/revenue", chain(guards.authenticated(authz.RoleTutor), h.revenue)...)
	router.Get("/:id", chain(guards.authenticated(), h.get)...)
}

func (h *PaymentHandler) createIntent(c *fiber.Ctx) error {
	var req dto.PaymentIntentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	intent, err := h.acceptance.CreateIntent(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return err
	}

	return utils.Created(c, intent, "payment intent created")
}

func (h *PaymentHandler) confirm(c *fiber.Ctx) error {
	var req dto.PaymentConfirmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.acceptance.Confirm(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return err
	}

	requestLogger(h.logger, c).Info().
		Uint("payment_id", result.Payment.ID).
		Uint("application_id", result.Application.ID).
		Int("rejected_applications", result.RejectedSiblings).
		Msg("application accepted")
	return utils.OK(c, result, "payment confirmed and application accepted", nil)
}

func (h *PaymentHandler) listMine(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.payments.ListMine(requestContext(c), middleware.ActorFromContext(c), page, pageSize)
	if err != nil {
		return err
	}

	return utils.OK(c, result, "payments retrieved", nil)
}

func (h *PaymentHandler) revenue(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.payments.Revenue(requestContext(c), middleware.ActorFromContext(c), page, pageSize)
	if err != nil {
		return err
	}

	return utils.OK(c, result, "revenue retrieved", nil)
}

func (h *PaymentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	payment, err := h.payments.Get(requestContext(c), middleware.ActorFromContext(c), id)
	if err != nil {
		return err
	}

	return utils.OK(c, payment, "payment retrieved", nil)
}
