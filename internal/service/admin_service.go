package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
)

// AdminService moderates tuitions and manages accounts.
type AdminService interface {
	ApproveTuition(ctx context.Context, actor authz.Actor, id uint) (dto.TuitionResponse, error)
	RejectTuition(ctx context.Context, actor authz.Actor, id uint, req dto.AdminTuitionRejectRequest) (dto.TuitionResponse, error)
	ListTuitions(ctx context.Context, actor authz.Actor, req dto.AdminTuitionListRequest) (dto.TuitionListResponse, error)
	ListUsers(ctx context.Context, actor authz.Actor, req dto.AdminUserListRequest) (dto.UserListResponse, error)
	GetUser(ctx context.Context, actor authz.Actor, id uint) (dto.UserResponse, error)
	UpdateUserRole(ctx context.Context, actor authz.Actor, id uint, req dto.AdminRoleUpdateRequest) (dto.UserResponse, error)
	UpdateUserStatus(ctx context.Context, actor authz.Actor, id uint, req dto.AdminStatusUpdateRequest) (dto.UserResponse, error)
	DeleteUser(ctx context.Context, actor authz.Actor, id uint) error
}

type adminService struct {
	users     repository.UserRepository
	tuitions  repository.TuitionRepository
	payments  repository.PaymentRepository
	validator *validator.Validate
	notifier  Notifier
	cache     *MarketplaceCache
	activity  ActivityRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// AdminDeps groups the collaborators of the admin service.
type AdminDeps struct {
	Users     repository.UserRepository
	Tuitions  repository.TuitionRepository
	Payments  repository.PaymentRepository
	Validator *validator.Validate
	Notifier  Notifier
	Cache     *MarketplaceCache
	Activity  ActivityRecorder
}

// NewAdminService constructs the admin service.
func NewAdminService(deps AdminDeps, logger zerolog.Logger) AdminService {
	return &adminService{
		users:     deps.Users,
		tuitions:  deps.Tuitions,
		payments:  deps.Payments,
		validator: deps.Validator,
		notifier:  notifierOrDiscard(deps.Notifier),
		cache:     deps.Cache,
		activity:  deps.Activity,
		logger:    logger.With().Str("component", "admin_service").Logger(),
		now:       time.Now,
	}
}

func requireAdmin(actor authz.Actor) error {
	return authz.Require(actor, authz.HasRole(authz.RoleAdmin), "admin access required")
}

func (s *adminService) ApproveTuition(ctx context.Context, actor authz.Actor, id uint) (dto.TuitionResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.TuitionResponse{}, err
	}

	tuition, err := s.tuitions.GetByID(ctx, id)
	if err != nil {
		return dto.TuitionResponse{}, notFound(err, "tuition not found")
	}

	now := s.now()
	if err := s.tuitions.UpdateFields(ctx, id, map[string]interface{}{
		"approval_status":  models.ApprovalStatusApproved,
		"approved_by":      actor.ID,
		"approved_at":      now,
		"rejected_by":      nil,
		"rejected_at":      nil,
		"rejection_reason": "",
	}); err != nil {
		return dto.TuitionResponse{}, notFound(err, "tuition not found")
	}

	tuition.ApprovalStatus = models.ApprovalStatusApproved
	tuition.ApprovedBy = uintPtr(actor.ID)
	tuition.ApprovedAt = &now
	tuition.RejectedBy = nil
	tuition.RejectedAt = nil
	tuition.RejectionReason = ""

	s.cache.Invalidate(ctx, tuition.StudentID)
	s.notifier.Notify(Notice{
		UserID:    tuition.StudentID,
		Type:      models.NotificationTuitionApproved,
		Title:     "Tuition approved",
		Message:   fmt.Sprintf("Your tuition %q is now visible to tutors.", tuition.Title),
		Link:      fmt.Sprintf("/tuitions/%d", tuition.ID),
		TuitionID: uintPtr(tuition.ID),
	})
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionTuitionApproved,
		EntityType: "tuition",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"title": tuition.Title},
	})

	return dto.NewTuitionResponse(tuition), nil
}

func (s *adminService) RejectTuition(ctx context.Context, actor authz.Actor, id uint, req dto.AdminTuitionRejectRequest) (dto.TuitionResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.TuitionResponse{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return dto.TuitionResponse{}, errdefs.New(errdefs.ErrValidation, "a rejection reason is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.TuitionResponse{}, err
	}

	tuition, err := s.tuitions.GetByID(ctx, id)
	if err != nil {
		return dto.TuitionResponse{}, notFound(err, "tuition not found")
	}

	now := s.now()
	if err := s.tuitions.UpdateFields(ctx, id, map[string]interface{}{
		"approval_status":  models.ApprovalStatusRejected,
		"rejected_by":      actor.ID,
		"rejected_at":      now,
		"rejection_reason": reason,
	}); err != nil {
		return dto.TuitionResponse{}, notFound(err, "tuition not found")
	}

	tuition.ApprovalStatus = models.ApprovalStatusRejected
	tuition.RejectedBy = uintPtr(actor.ID)
	tuition.RejectedAt = &now
	tuition.RejectionReason = reason

	s.cache.Invalidate(ctx, tuition.StudentID)
	s.notifier.Notify(Notice{
		UserID:    tuition.StudentID,
		Type:      models.NotificationTuitionRejected,
		Title:     "Tuition rejected",
		Message:   fmt.Sprintf("Your tuition %q was rejected. Reason: %s", tuition.Title, reason),
		Link:      fmt.Sprintf("/tuitions/%d", tuition.ID),
		Priority:  models.NotificationPriorityHigh,
		TuitionID: uintPtr(tuition.ID),
	})
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionTuitionRejected,
		EntityType: "tuition",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"title": tuition.Title, "reason": reason},
	})

	return dto.NewTuitionResponse(tuition), nil
}

func (s *adminService) ListTuitions(ctx context.Context, actor authz.Actor, req dto.AdminTuitionListRequest) (dto.TuitionListResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.TuitionListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	tuitions, total, err := s.tuitions.List(ctx, repository.TuitionFilter{
		Pagination:     repository.Pagination{Page: page, PageSize: pageSize},
		ApprovalStatus: strings.TrimSpace(req.ApprovalStatus),
		Status:         strings.TrimSpace(req.Status),
		Search:         strings.TrimSpace(req.Search),
	})
	if err != nil {
		return dto.TuitionListResponse{}, err
	}

	return dto.TuitionListResponse{
		Items:      dto.NewTuitionResponseSlice(tuitions),
		Pagination: paginationMeta(page, pageSize, total),
	}, nil
}

func (s *adminService) ListUsers(ctx context.Context, actor authz.Actor, req dto.AdminUserListRequest) (dto.UserListResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.UserListResponse{}, err
	}

	status := strings.TrimSpace(req.Status)
	if normalized, ok := models.NormalizeUserStatus(status); ok {
		status = normalized
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	users, total, err := s.users.List(ctx, repository.UserFilter{
		Pagination: repository.Pagination{Page: page, PageSize: pageSize},
		Role:       authz.NormalizeRole(req.Role),
		Status:     status,
		Search:     strings.TrimSpace(req.Search),
	})
	if err != nil {
		return dto.UserListResponse{}, err
	}

	return dto.UserListResponse{
		Items:      dto.NewUserResponseSlice(users),
		Pagination: paginationMeta(page, pageSize, total),
	}, nil
}

func (s *adminService) GetUser(ctx context.Context, actor authz.Actor, id uint) (dto.UserResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.UserResponse{}, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, notFound(err, "user not found")
	}
	return dto.NewUserResponse(user), nil
}

func (s *adminService) UpdateUserRole(ctx context.Context, actor authz.Actor, id uint, req dto.AdminRoleUpdateRequest) (dto.UserResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}
	if actor.ID == id {
		return dto.UserResponse{}, errdefs.New(errdefs.ErrInvalidState, "you cannot change your own role")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, notFound(err, "user not found")
	}

	role := authz.NormalizeRole(req.Role)
	previous := user.Role
	if err := s.users.UpdateFields(ctx, id, map[string]interface{}{"role": role}); err != nil {
		return dto.UserResponse{}, notFound(err, "user not found")
	}
	user.Role = role

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionUserRoleChanged,
		EntityType: "user",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"from": previous, "to": role},
	})

	return dto.NewUserResponse(user), nil
}

func (s *adminService) UpdateUserStatus(ctx context.Context, actor authz.Actor, id uint, req dto.AdminStatusUpdateRequest) (dto.UserResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	status, ok := models.NormalizeUserStatus(req.Status)
	if !ok {
		return dto.UserResponse{}, errdefs.Newf(errdefs.ErrValidation, "unknown status %q", req.Status)
	}
	if actor.ID == id && status != models.UserStatusApproved {
		return dto.UserResponse{}, errdefs.New(errdefs.ErrInvalidState, "you cannot restrict your own account")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, notFound(err, "user not found")
	}

	reason := strings.TrimSpace(req.Reason)
	fields := map[string]interface{}{"status": status}
	switch status {
	case models.UserStatusApproved:
		now := s.now()
		fields["approved_by"] = actor.ID
		fields["approved_at"] = now
		fields["rejection_reason"] = ""
		user.ApprovedBy = uintPtr(actor.ID)
		user.ApprovedAt = &now
		user.RejectionReason = ""
	case models.UserStatusRejected, models.UserStatusSuspended, models.UserStatusBlocked:
		fields["rejection_reason"] = reason
		user.RejectionReason = reason
	}

	previous := user.Status
	if err := s.users.UpdateFields(ctx, id, fields); err != nil {
		return dto.UserResponse{}, notFound(err, "user not found")
	}
	user.Status = status

	message := fmt.Sprintf("Your account status is now %s.", status)
	if reason != "" {
		message += " Reason: " + reason
	}
	s.notifier.Notify(Notice{
		UserID:   user.ID,
		Type:     models.NotificationAccountUpdate,
		Title:    "Account status updated",
		Message:  message,
		Link:     "/profile",
		Priority: models.NotificationPriorityHigh,
	})
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionUserStatusChanged,
		EntityType: "user",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"from": previous, "to": status, "reason": reason},
	})

	return dto.NewUserResponse(user), nil
}

func (s *adminService) DeleteUser(ctx context.Context, actor authz.Actor, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.ID == id {
		return errdefs.New(errdefs.ErrInvalidState, "you cannot delete your own account")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "user not found")
	}
	if user.IsAdmin() {
		return errdefs.New(errdefs.ErrForbidden, "admin accounts cannot be deleted")
	}

	for _, filter := range []repository.PaymentFilter{{StudentID: uintPtr(id)}, {TutorID: uintPtr(id)}} {
		totals, err := s.payments.Totals(ctx, filter)
		if err != nil {
			return err
		}
		if totals.Count > 0 {
			return errdefs.New(errdefs.ErrInvalidState, "users with payment history cannot be deleted")
		}
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return notFound(err, "user not found")
	}

	s.cache.Invalidate(ctx, id)
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionUserDeleted,
		EntityType: "user",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"role": user.Role, "email": user.Email},
	})
	return nil
}
