package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/middleware"
	"github.com/noah-isme/tutorlink-api/internal/service"
	"github.com/noah-isme/tutorlink-api/internal/utils"
)

// AdminHandler exposes moderation, user management and the payment ledger.
// The router mounts it behind RequireRole("admin"); services re-check.
type AdminHandler struct {
	admin    service.AdminService
	payments service.PaymentService
	activity service.ActivityService
	logger   zerolog.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(admin service.AdminService, payments service.PaymentService, activity service.ActivityService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		payments: payments,
		activity: activity,
		logger:   logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register attaches routes.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/tuitions", h.listTuitions)
	router.Patch("/tuitions/:id/approve", h.approveTuition)
	router.Patch("/tuitions/:id/reject", h.rejectTuition)

	router.Get("/users", h.listUsers)
	router.Get("/users/:id", h.getUser)
	router.Patch("/users/:id/role", h.updateUserRole)
	router.Patch("/users/:id/status", h.updateUserStatus)
	router.Delete("/users/:id", h.deleteUser)

	router.Get("/payments", h.listPayments)
	router.Patch("/payments/:id/status", h.updatePaymentStatus)

	router.Get("/activity", h.listActivity)
}

func (h *AdminHandler) listTuitions(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.admin.ListTuitions(requestContext(c), middleware.ActorFromContext(c), dto.AdminTuitionListRequest{
		Page:           page,
		PageSize:       pageSize,
		ApprovalStatus: c.Query("approval_status"),
		Status:         c.Query("status"),
		Search:         c.Query("search"),
	})
	if err != nil {
		return err
	}

	return utils.OK(c, result, "tuitions retrieved", nil)
}

func (h *AdminHandler) approveTuition(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	tuition, err := h.admin.ApproveTuition(requestContext(c), middleware.ActorFromContext(c), id)
	if err != nil {
		return err
	}

	return utils.OK(c, tuition, "tuition approved", nil)
}

func (h *AdminHandler) rejectTuition(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req dto.AdminTuitionRejectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tuition, err := h.admin.RejectTuition(requestContext(c), middleware.ActorFromContext(c), id, req)
	if err != nil {
		return err
	}

	return utils.OK(c, tuition, "tuition rejected", nil)
}

func (h *AdminHandler) listUsers(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.admin.ListUsers(requestContext(c), middleware.ActorFromContext(c), dto.AdminUserListRequest{
		Page:     page,
		PageSize: pageSize,
		Role:     c.Query("role"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
	})
	if err != nil {
		return err
	}

	return utils.OK(c, result, "users retrieved", nil)
}

func (h *AdminHandler) getUser(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	user, err := h.admin.GetUser(requestContext(c), middleware.ActorFromContext(c), id)
	if err != nil {
		return err
	}

	return utils.OK(c, user, "user retrieved", nil)
}

func (h *AdminHandler) updateUserRole(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req dto.AdminRoleUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.admin.UpdateUserRole(requestContext(c), middleware.ActorFromContext(c), id, req)
	if err != nil {
		return err
	}

	return utils.OK(c, user, "user role updated", nil)
}

func (h *AdminHandler) updateUserStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req dto.AdminStatusUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.admin.UpdateUserStatus(requestContext(c), middleware.ActorFromContext(c), id, req)
	if err != nil {
		return err
	}

	return utils.OK(c, user, "user status updated", nil)
}

func (h *AdminHandler) deleteUser(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.admin.DeleteUser(requestContext(c), middleware.ActorFromContext(c), id); err != nil {
		return err
	}

	requestLogger(h.logger, c).Info().Uint("user_id", id).Msg("user deleted")
	return utils.OK(c, nil, "user deleted", nil)
}

func (h *AdminHandler) listPayments(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.payments.AdminList(requestContext(c), middleware.ActorFromContext(c), dto.AdminPaymentListRequest{
		Page:     page,
		PageSize: pageSize,
		Status:   c.Query("status"),
	})
	if err != nil {
		return err
	}

	return utils.OK(c, result, "payments retrieved", nil)
}

func (h *AdminHandler) updatePaymentStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req dto.AdminPaymentStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	payment, err := h.payments.AdminUpdateStatus(requestContext(c), middleware.ActorFromContext(c), id, req)
	if err != nil {
		return err
	}

	return utils.OK(c, payment, "payment status updated", nil)
}

func (h *AdminHandler) listActivity(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}
	actorID, err := parseQueryInt(c, "actor_id")
	if err != nil {
		return err
	}
	entityID, err := parseQueryInt(c, "entity_id")
	if err != nil {
		return err
	}
	if actorID < 0 || entityID < 0 {
		return badRequest("identifiers must be positive")
	}

	result, err := h.activity.List(requestContext(c), middleware.ActorFromContext(c), dto.AdminActivityListRequest{
		Page:       page,
		PageSize:   pageSize,
		ActorID:    uint(actorID),
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
		EntityID:   uint(entityID),
	})
	if err != nil {
		return err
	}

	return utils.OK(c, result, "activity retrieved", nil)
}
