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

// ReviewHandler exposes tutor reviews.
type ReviewHandler struct {
	service service.ReviewService
	logger  zerolog.Logger
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(service service.ReviewService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		logger:  logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register attaches routes.
func (h *ReviewHandler) Register(router fiber.Router, guards Guards) {
	router.Get("/tutor/:id", h.listForTutor)
	router.Get("/mine", chain(guards.authenticated(authz.RoleStudent), h.listMine)...)
	router.Get("/can-review/:tutorId", chain(guards.authenticated(authz.RoleStudent), h.canReview)...)
	router.Post("/", chain(guards.authenticated(authz.RoleStudent), h.create)...)
	router.Put("/:id", chain(guards.authenticated(authz.RoleStudent), h.update)...)
	router.Delete("/:id", chain(guards.authenticated(authz.RoleStudent, authz.RoleAdmin), h.delete)...)
}

func (h *ReviewHandler) create(c *fiber.Ctx) error {
	var req dto.ReviewCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	review, err := h.service.Create(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return err
	}

	requestLogger(h.logger, c).Info().
		Uint("review_id", review.ID).
		Uint("tutor_id", review.TutorID).
		Msg("review submitted")
	return utils.Created(c, review, "review submitted")
}

func (h *ReviewHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req dto.ReviewUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	review, err := h.service.Update(requestContext(c), middleware.ActorFromContext(c), id, req)
	if err != nil {
		return err
	}

	return utils.OK(c, review, "review updated", nil)
}

func (h *ReviewHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.Delete(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return err
	}

	return utils.OK(c, nil, "review deleted", nil)
}

func (h *ReviewHandler) listForTutor(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.service.ListForTutor(requestContext(c), id, page, pageSize)
	if err != nil {
		return err
	}

	return utils.OK(c, result, "reviews retrieved", nil)
}

func (h *ReviewHandler) listMine(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.service.ListMine(requestContext(c), middleware.ActorFromContext(c), page, pageSize)
	if err != nil {
		return err
	}

	return utils.OK(c, result, "reviews retrieved", nil)
}

func (h *ReviewHandler) canReview(c *fiber.Ctx) error {
	tutorID, err := parseUintParam(c, "tutorId")
	if err != nil {
		return err
	}

	result, err := h.service.CanReview(requestContext(c), middleware.ActorFromContext(c), tutorID)
	if err != nil {
		return err
	}

	return utils.OK(c, result, "review eligibility retrieved", nil)
}
