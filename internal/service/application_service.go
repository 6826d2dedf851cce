package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
)

// ApplicationService manages tutor applications to tuitions.
type ApplicationService interface {
	Apply(ctx context.Context, actor authz.Actor, req dto.ApplicationCreateRequest) (dto.ApplicationResponse, error)
	Update(ctx context.Context, actor authz.Actor, id uint, req dto.ApplicationUpdateRequest) (dto.ApplicationResponse, error)
	Withdraw(ctx context.Context, actor authz.Actor, id uint) (dto.ApplicationResponse, error)
	UpdateStatus(ctx context.Context, actor authz.Actor, id uint, req dto.ApplicationStatusRequest) (dto.ApplicationResponse, error)
	Get(ctx context.Context, actor authz.Actor, id uint) (dto.ApplicationResponse, error)
	ListMine(ctx context.Context, actor authz.Actor, req dto.ApplicationListRequest) (dto.ApplicationListResponse, error)
	ListForTuition(ctx context.Context, actor authz.Actor, tuitionID uint, req dto.ApplicationListRequest) (dto.ApplicationListResponse, error)
	CheckApplied(ctx context.Context, actor authz.Actor, tuitionID uint) (dto.AppliedCheckResponse, error)
}

type applicationService struct {
	applications repository.ApplicationRepository
	tuitions     repository.TuitionRepository
	users        repository.UserRepository
	validator    *validator.Validate
	notifier     Notifier
	cache        *MarketplaceCache
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	now          func() time.Time
}

// NewApplicationService constructs the application service.
func NewApplicationService(
	applications repository.ApplicationRepository,
	tuitions repository.TuitionRepository,
	users repository.UserRepository,
	validate *validator.Validate,
	notifier Notifier,
	cache *MarketplaceCache,
	logger zerolog.Logger,
) ApplicationService {
	return &applicationService{
		applications: applications,
		tuitions:     tuitions,
		users:        users,
		validator:    validate,
		notifier:     notifierOrDiscard(notifier),
		cache:        cache,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "application_service").Logger(),
		now:          time.Now,
	}
}

func (s *applicationService) Apply(ctx context.Context, actor authz.Actor, req dto.ApplicationCreateRequest) (dto.ApplicationResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleTutor), "only tutors can apply to tuitions"); err != nil {
		return dto.ApplicationResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ApplicationResponse{}, err
	}

	tuition, err := s.tuitions.GetByID(ctx, req.TuitionID)
	if err != nil {
		return dto.ApplicationResponse{}, notFound(err, "tuition not found")
	}
	if !tuition.AcceptsApplications() {
		return dto.ApplicationResponse{}, errdefs.New(errdefs.ErrInvalidState, "tuition is not accepting applications")
	}

	tutor, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return dto.ApplicationResponse{}, notFound(err, "tutor not found")
	}

	application := models.Application{
		TuitionID:      tuition.ID,
		TutorID:        actor.ID,
		StudentID:      tuition.StudentID,
		Name:           tutor.Name,
		Email:          tutor.Email,
		Qualifications: s.clean(req.Qualifications),
		Experience:     s.clean(req.Experience),
		ExpectedSalary: req.ExpectedSalary,
		Message:        s.clean(req.Message),
		Status:         models.ApplicationStatusPending,
		AppliedAt:      s.now(),
	}

	if err := s.applications.Create(ctx, &application); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return dto.ApplicationResponse{}, errdefs.New(errdefs.ErrConflict, "you have already applied to this tuition")
		case errors.Is(err, repository.ErrTuitionUnavailable):
			return dto.ApplicationResponse{}, errdefs.New(errdefs.ErrInvalidState, "tuition is not accepting applications")
		default:
			return dto.ApplicationResponse{}, err
		}
	}

	application.Tuition = &tuition
	application.Tutor = &tutor
	s.cache.Invalidate(ctx, tuition.StudentID)

	s.notifier.Notify(Notice{
		UserID:        tuition.StudentID,
		Type:          models.NotificationApplicationReceived,
		Title:         "New application received",
		Message:       fmt.Sprintf("%s applied to your tuition %q", tutor.Name, tuition.Title),
		Link:          fmt.Sprintf("/tuitions/%d/applications", tuition.ID),
		TuitionID:     uintPtr(tuition.ID),
		ApplicationID: uintPtr(application.ID),
	})

	return dto.NewApplicationResponse(application), nil
}

func (s *applicationService) Update(ctx context.Context, actor authz.Actor, id uint, req dto.ApplicationUpdateRequest) (dto.ApplicationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ApplicationResponse{}, err
	}

	application, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return dto.ApplicationResponse{}, notFound(err, "application not found")
	}
	if err := authz.Require(actor, authz.IsOwner(application.TutorID), "you can only edit your own applications"); err != nil {
		return dto.ApplicationResponse{}, err
	}
	if !application.IsPending() {
		return dto.ApplicationResponse{}, errdefs.New(errdefs.ErrConflict, "only pending applications can be edited")
	}

	fields := map[string]interface{}{}
	if req.Qualifications != nil {
		application.Qualifications = s.clean(*req.Qualifications)
		fields["qualifications"] = application.Qualifications
	}
	if req.Experience != nil {
		application.Experience = s.clean(*req.Experience)
		fields["experience"] = application.Experience
	}
	if req.ExpectedSalary != nil {
		application.ExpectedSalary = *req.ExpectedSalary
		fields["expected_salary"] = application.ExpectedSalary
	}
	if req.Message != nil {
		application.Message = s.clean(*req.Message)
		fields["message"] = application.Message
	}
	if len(fields) == 0 {
		return dto.NewApplicationResponse(application), nil
	}

	if err := s.applications.UpdatePending(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return dto.ApplicationResponse{}, errdefs.New(errdefs.ErrConflict, "only pending applications can be edited")
		}
		return dto.ApplicationResponse{}, err
	}

	return dto.NewApplicationResponse(application), nil
}

func (s *applicationService) Withdraw(ctx context.Context, actor authz.Actor, id uint) (dto.ApplicationResponse, error) {
	application, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return dto.ApplicationResponse{}, notFound(err, "application not found")
	}
	if err := authz.Require(actor, authz.IsOwner(application.TutorID), "you can only withdraw your own applications"); err != nil {
		return dto.ApplicationResponse{}, err
	}
	if !application.IsPending() {
		return dto.ApplicationResponse{}, errdefs.Newf(errdefs.ErrInvalidState, "cannot withdraw an application that is %s", application.Status)
	}

	now := s.now()
	if err := s.applications.UpdatePending(ctx, id, map[string]interface{}{
		"status":       models.ApplicationStatusWithdrawn,
		"responded_at": now,
	}); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return dto.ApplicationResponse{}, errdefs.New(errdefs.ErrInvalidState, "application is no longer pending")
		}
		return dto.ApplicationResponse{}, err
	}

	application.Status = models.ApplicationStatusWithdrawn
	application.RespondedAt = &now
	s.cache.Invalidate(ctx, application.StudentID)

	return dto.NewApplicationResponse(application), nil
}

// UpdateStatus only rejects. Acceptance requires a confirmed payment.
func (s *applicationService) UpdateStatus(ctx context.Context, actor authz.Actor, id uint, req dto.ApplicationStatusRequest) (dto.ApplicationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ApplicationResponse{}, err
	}
	if req.Status == models.ApplicationStatusAccepted {
		return dto.ApplicationResponse{}, errdefs.New(errdefs.ErrValidation, "applications are accepted by confirming payment at /api/v1/payments/confirm")
	}

	application, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return dto.ApplicationResponse{}, notFound(err, "application not found")
	}
	if err := authz.Require(actor, authz.OwnerOrAdmin(application.StudentID), "only the tuition owner can respond to applications"); err != nil {
		return dto.ApplicationResponse{}, err
	}
	if !application.IsPending() {
		return dto.ApplicationResponse{}, errdefs.Newf(errdefs.ErrInvalidState, "cannot reject an application that is %s", application.Status)
	}

	now := s.now()
	reason := s.clean(req.Reason)
	if err := s.applications.UpdatePending(ctx, id, map[string]interface{}{
		"status":           models.ApplicationStatusRejected,
		"responded_at":     now,
		"rejection_reason": reason,
	}); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return dto.ApplicationResponse{}, errdefs.New(errdefs.ErrInvalidState, "application is no longer pending")
		}
		return dto.ApplicationResponse{}, err
	}

	application.Status = models.ApplicationStatusRejected
	application.RespondedAt = &now
	application.RejectionReason = reason
	s.cache.Invalidate(ctx, application.StudentID)

	message := "Your application was not selected."
	if application.Tuition != nil {
		message = fmt.Sprintf("Your application for %q was not selected.", application.Tuition.Title)
	}
	if reason != "" {
		message += " Reason: " + reason
	}
	s.notifier.Notify(Notice{
		UserID:        application.TutorID,
		Type:          models.NotificationApplicationRejected,
		Title:         "Application rejected",
		Message:       message,
		Link:          fmt.Sprintf("/applications/%d", application.ID),
		TuitionID:     uintPtr(application.TuitionID),
		ApplicationID: uintPtr(application.ID),
	})

	return dto.NewApplicationResponse(application), nil
}

func (s *applicationService) Get(ctx context.Context, actor authz.Actor, id uint) (dto.ApplicationResponse, error) {
	application, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return dto.ApplicationResponse{}, notFound(err, "application not found")
	}
	gate := authz.AnyOf(authz.IsOwner(application.TutorID), authz.OwnerOrAdmin(application.StudentID))
	if err := authz.Require(actor, gate, "you cannot view this application"); err != nil {
		return dto.ApplicationResponse{}, err
	}
	return dto.NewApplicationResponse(application), nil
}

// ListMine lists a tutor's own bids, or for a student every application made
// to the tuitions they posted.
func (s *applicationService) ListMine(ctx context.Context, actor authz.Actor, req dto.ApplicationListRequest) (dto.ApplicationListResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleTutor, authz.RoleStudent), "only tutors and students have applications"); err != nil {
		return dto.ApplicationListResponse{}, err
	}
	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.ApplicationFilter{
		Pagination: repository.Pagination{Page: page, PageSize: pageSize},
		Status:     strings.TrimSpace(req.Status),
	}
	if authz.NormalizeRole(actor.Role) == authz.RoleStudent {
		filter.StudentID = uintPtr(actor.ID)
	} else {
		filter.TutorID = uintPtr(actor.ID)
	}
	return s.list(ctx, filter)
}

func (s *applicationService) ListForTuition(ctx context.Context, actor authz.Actor, tuitionID uint, req dto.ApplicationListRequest) (dto.ApplicationListResponse, error) {
	tuition, err := s.tuitions.GetByID(ctx, tuitionID)
	if err != nil {
		return dto.ApplicationListResponse{}, notFound(err, "tuition not found")
	}
	if err := authz.Require(actor, authz.OwnerOrAdmin(tuition.StudentID), "you can only view applications to your own tuitions"); err != nil {
		return dto.ApplicationListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	return s.list(ctx, repository.ApplicationFilter{
		Pagination: repository.Pagination{Page: page, PageSize: pageSize},
		TuitionID:  uintPtr(tuitionID),
		Status:     strings.TrimSpace(req.Status),
	})
}

func (s *applicationService) CheckApplied(ctx context.Context, actor authz.Actor, tuitionID uint) (dto.AppliedCheckResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleTutor), "only tutors apply to tuitions"); err != nil {
		return dto.AppliedCheckResponse{}, err
	}

	application, err := s.applications.GetByTuitionAndTutor(ctx, tuitionID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AppliedCheckResponse{HasApplied: false}, nil
		}
		return dto.AppliedCheckResponse{}, err
	}

	return dto.AppliedCheckResponse{
		HasApplied:    true,
		ApplicationID: uintPtr(application.ID),
		Status:        application.Status,
	}, nil
}

func (s *applicationService) list(ctx context.Context, filter repository.ApplicationFilter) (dto.ApplicationListResponse, error) {
	applications, total, err := s.applications.List(ctx, filter)
	if err != nil {
		return dto.ApplicationListResponse{}, err
	}
	return dto.ApplicationListResponse{
		Items:      dto.NewApplicationResponseSlice(applications),
		Pagination: paginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *applicationService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}
