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

// TuitionHandler exposes tuition posting, browsing and lifecycle endpoints.
type TuitionHandler struct {
	tuitions     service.TuitionService
	applications service.ApplicationService
	logger       zerolog.Logger
}

// NewTuitionHandler constructs the handler.
func NewTuitionHandler(tuitions service.TuitionService, applications service.ApplicationService, logger zerolog.Logger) *TuitionHandler {
	return &TuitionHandler{
		tuitions:     tuitions,
		applications: applications,
		logger:       logger.With().Str("component", "tuition_handler").Logger(),
	}
}

// Register attaches routes. Reads are public; the caller is identified when a
// token is sent so owners and admins can see unapproved posts.
func (h *TuitionHandler) Register(router fiber.Router, guards Guards) {
	student := middleware.AuthOptions{Roles: []string{authz.RoleStudent}}
	owner := middleware.AuthOptions{Roles: []string{authz.RoleStudent, authz.RoleAdmin}}
	tutor := middleware.AuthOptions{Roles: []string{authz.RoleTutor}}

	router.Get("/", h.list)
	router.Get("/latest", h.latest)
	router.Get("/mine", chain(guards.identified(), middleware.WithAuth(h.listMine, student))...)
	router.Post("/", chain(guards.identified(), middleware.WithAuth(h.create, student))...)
	router.Get("/:id", chain(guards.identified(), h.get)...)
	router.Put("/:id", chain(guards.identified(), middleware.WithAuth(h.update, owner))...)
	router.Patch("/:id/status", chain(guards.identified(), middleware.WithAuth(h.updateStatus, owner))...)
	router.Delete("/:id", chain(guards.identified(), middleware.WithAuth(h.delete, owner))...)
	router.Get("/:id/applications", chain(guards.identified(), middleware.WithAuth(h.listApplications, owner))...)
	router.Get("/:id/applied", chain(guards.identified(), middleware.WithAuth(h.checkApplied, tutor))...)
}

func (h *TuitionHandler) listRequest(c *fiber.Ctx) (dto.TuitionListRequest, error) {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return dto.TuitionListRequest{}, err
	}
	minSalary, err := parseOptionalInt64(c, "min_salary")
	if err != nil {
		return dto.TuitionListRequest{}, err
	}
	maxSalary, err := parseOptionalInt64(c, "max_salary")
	if err != nil {
		return dto.TuitionListRequest{}, err
	}

	return dto.TuitionListRequest{
		Page:            page,
		PageSize:        pageSize,
		Search:          c.Query("search"),
		Subject:         c.Query("subject"),
		TutoringType:    c.Query("tutoring_type"),
		PreferredMedium: c.Query("preferred_medium"),
		MinSalary:       minSalary,
		MaxSalary:       maxSalary,
	}, nil
}

func (h *TuitionHandler) list(c *fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return err
	}

	result, err := h.tuitions.ListPublic(requestContext(c), req)
	if err != nil {
		return err
	}

	return utils.OK(c, result, "tuitions retrieved", nil)
}

func (h *TuitionHandler) latest(c *fiber.Ctx) error {
	items, err := h.tuitions.Latest(requestContext(c))
	if err != nil {
		return err
	}

	return utils.OK(c, items, "latest tuitions retrieved", nil)
}

func (h *TuitionHandler) listMine(c *fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return err
	}

	result, err := h.tuitions.ListMine(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return err
	}

	return utils.OK(c, result, "tuitions retrieved", nil)
}

func (h *TuitionHandler) create(c *fiber.Ctx) error {
	var req dto.TuitionCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tuition, err := h.tuitions.Create(requestContext(c), middleware.ActorFromContext(c), req)
	if err != nil {
		return err
	}

	requestLogger(h.logger, c).Info().Uint("tuition_id", tuition.ID).Msg("tuition posted")
	return utils.Created(c, tuition, "tuition created and awaiting approval")
}

func (h *TuitionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	tuition, err := h.tuitions.Get(requestContext(c), middleware.ActorFromContext(c), id)
	if err != nil {
		return err
	}

	return utils.OK(c, tuition, "tuition retrieved", nil)
}

func (h *TuitionHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req dto.TuitionUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tuition, err := h.tuitions.Update(requestContext(c), middleware.ActorFromContext(c), id, req)
	if err != nil {
		return err
	}

	return utils.OK(c, tuition, "tuition updated", nil)
}

func (h *TuitionHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req dto.TuitionStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tuition, err := h.tuitions.UpdateStatus(requestContext(c), middleware.ActorFromContext(c), id, req)
	if err != nil {
		return err
	}

	return utils.OK(c, tuition, "tuition status updated", nil)
}

func (h *TuitionHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.tuitions.Delete(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return err
	}

	return utils.OK(c, nil, "tuition deleted", nil)
}

func (h *TuitionHandler) listApplications(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.applications.ListForTuition(requestContext(c), middleware.ActorFromContext(c), id, dto.ApplicationListRequest{
		Page:     page,
		PageSize: pageSize,
		Status:   c.Query("status"),
	})
	if err != nil {
		return err
	}

	return utils.OK(c, result, "applications retrieved", nil)
}

func (h *TuitionHandler) checkApplied(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	result, err := h.applications.CheckApplied(requestContext(c), middleware.ActorFromContext(c), id)
	if err != nil {
		return err
	}

	return utils.OK(c, result, "application status retrieved", nil)
}
