package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
)

// Audited actions.
const (
	ActionTuitionApproved   = "tuition.approved"
	ActionTuitionRejected   = "tuition.rejected"
	ActionTuitionDeleted    = "tuition.deleted"
	ActionTuitionStatus     = "tuition.status_changed"
	ActionApplicationAccept = "application.accepted"
	ActionPaymentRefunded   = "payment.refunded"
	ActionPaymentCompensate = "payment.compensated"
	ActionReviewDeleted     = "review.deleted"
	ActionPaymentStatus     = "payment.status_changed"
	ActionUserRoleChanged   = "user.role_changed"
	ActionUserStatusChanged = "user.status_changed"
	ActionUserDeleted       = "user.deleted"
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	Actor      authz.Actor
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording activity logs.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.AdminActivityResponse, error)
}

// ActivityService exposes methods to query and persist activity logs.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, actor authz.Actor, req dto.AdminActivityListRequest) (dto.AdminActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.AdminActivityResponse, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return dto.AdminActivityResponse{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return dto.AdminActivityResponse{}, fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		ActorID:    entry.Actor.ID,
		ActorRole:  actorRole(entry.Actor),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist activity log")
		return dto.AdminActivityResponse{}, err
	}

	return dto.NewAdminActivityResponse(model), nil
}

func (s *activityService) List(ctx context.Context, actor authz.Actor, req dto.AdminActivityListRequest) (dto.AdminActivityListResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleAdmin), "only admins can view the activity log"); err != nil {
		return dto.AdminActivityListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.ActivityLogFilter{
		Pagination: repository.Pagination{Page: page, PageSize: pageSize},
		Action:     strings.TrimSpace(req.Action),
		EntityType: strings.TrimSpace(req.EntityType),
	}
	if req.ActorID > 0 {
		filter.ActorID = uintPtr(req.ActorID)
	}
	if req.EntityID > 0 {
		filter.EntityID = uintPtr(req.EntityID)
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AdminActivityListResponse{}, err
	}

	responses := make([]dto.AdminActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewAdminActivityResponse(entry))
	}

	return dto.AdminActivityListResponse{Items: responses, Pagination: paginationMeta(page, pageSize, total)}, nil
}

// recordActivity writes an audit entry and only logs failures.
func recordActivity(ctx context.Context, recorder ActivityRecorder, logger zerolog.Logger, entry ActivityEntry) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("activity log entry dropped")
	}
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") || strings.Contains(lower, "secret") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func actorRole(actor authz.Actor) string {
	role := authz.NormalizeRole(actor.Role)
	if role == "" {
		return "system"
	}
	return role
}
