package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
)

const latestTuitionsLimit = 6

// TuitionService manages tuition postings and their lifecycle.
type TuitionService interface {
	Create(ctx context.Context, actor authz.Actor, req dto.TuitionCreateRequest) (dto.TuitionResponse, error)
	Get(ctx context.Context, actor authz.Actor, id uint) (dto.TuitionResponse, error)
	ListPublic(ctx context.Context, req dto.TuitionListRequest) (dto.TuitionListResponse, error)
	Latest(ctx context.Context) ([]dto.TuitionResponse, error)
	ListMine(ctx context.Context, actor authz.Actor, req dto.TuitionListRequest) (dto.TuitionListResponse, error)
	Update(ctx context.Context, actor authz.Actor, id uint, req dto.TuitionUpdateRequest) (dto.TuitionResponse, error)
	UpdateStatus(ctx context.Context, actor authz.Actor, id uint, req dto.TuitionStatusRequest) (dto.TuitionResponse, error)
	Delete(ctx context.Context, actor authz.Actor, id uint) error
}

type tuitionService struct {
	repo      repository.TuitionRepository
	validator *validator.Validate
	cache     *MarketplaceCache
	activity  ActivityRecorder
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTuitionService constructs the tuition service.
func NewTuitionService(repo repository.TuitionRepository, validate *validator.Validate, cache *MarketplaceCache, activity ActivityRecorder, logger zerolog.Logger) TuitionService {
	return &tuitionService{
		repo:      repo,
		validator: validate,
		cache:     cache,
		activity:  activity,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "tuition_service").Logger(),
		now:       time.Now,
	}
}

func (s *tuitionService) Create(ctx context.Context, actor authz.Actor, req dto.TuitionCreateRequest) (dto.TuitionResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleStudent), "only students can post tuitions"); err != nil {
		return dto.TuitionResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.TuitionResponse{}, err
	}

	details, err := encodeStudentDetails(req.StudentDetails)
	if err != nil {
		return dto.TuitionResponse{}, err
	}

	requirements := s.clean(req.Requirements)
	if requirements == "" {
		return dto.TuitionResponse{}, errdefs.New(errdefs.ErrValidation, "requirements are required")
	}

	tuition := models.Tuition{
		StudentID:             actor.ID,
		Title:                 s.clean(req.Title),
		Subject:               strings.TrimSpace(req.Subject),
		Grade:                 strings.TrimSpace(req.Grade),
		Location:              strings.TrimSpace(req.Location),
		Salary:                req.Salary,
		DaysPerWeek:           req.DaysPerWeek,
		ClassDuration:         strings.TrimSpace(req.ClassDuration),
		StudentGender:         defaultString(req.StudentGender, "Any"),
		TutorGenderPreference: defaultString(req.TutorGenderPreference, "Any"),
		PreferredMedium:       defaultString(req.PreferredMedium, "Both"),
		TutoringType:          req.TutoringType,
		Requirements:          requirements,
		Description:           s.clean(req.Description),
		StudentDetails:        details,
		ApprovalStatus:        models.ApprovalStatusPending,
		Status:                models.TuitionStatusOpen,
	}

	if err := s.repo.Create(ctx, &tuition); err != nil {
		return dto.TuitionResponse{}, err
	}

	s.cache.Invalidate(ctx, actor.ID)
	s.logger.Info().Uint("tuition_id", tuition.ID).Uint("student_id", actor.ID).Msg("tuition submitted for approval")

	return dto.NewTuitionResponse(tuition), nil
}

// Get hides unapproved tuitions from everyone but the owner and admins.
func (s *tuitionService) Get(ctx context.Context, actor authz.Actor, id uint) (dto.TuitionResponse, error) {
	tuition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.TuitionResponse{}, notFound(err, "tuition not found")
	}

	if tuition.ApprovalStatus != models.ApprovalStatusApproved && !authz.OwnerOrAdmin(tuition.StudentID)(actor) {
		return dto.TuitionResponse{}, errdefs.New(errdefs.ErrNotFound, "tuition not found")
	}

	if err := s.repo.IncrementViews(ctx, id); err != nil {
		s.logger.Warn().Err(err).Uint("tuition_id", id).Msg("failed to record tuition view")
	} else {
		tuition.Views++
	}

	return dto.NewTuitionResponse(tuition), nil
}

func (s *tuitionService) ListPublic(ctx context.Context, req dto.TuitionListRequest) (dto.TuitionListResponse, error) {
	filter := s.filterFrom(req)
	filter.ApprovalStatus = models.ApprovalStatusApproved
	filter.Status = models.TuitionStatusOpen
	return s.list(ctx, filter)
}

func (s *tuitionService) Latest(ctx context.Context) ([]dto.TuitionResponse, error) {
	if cached, ok := s.cache.Latest(ctx); ok {
		return cached, nil
	}

	tuitions, _, err := s.repo.List(ctx, repository.TuitionFilter{
		Pagination:     repository.Pagination{Page: 1, PageSize: latestTuitionsLimit},
		ApprovalStatus: models.ApprovalStatusApproved,
		Status:         models.TuitionStatusOpen,
	})
	if err != nil {
		return nil, err
	}

	items := dto.NewTuitionResponseSlice(tuitions)
	s.cache.StoreLatest(ctx, items)
	return items, nil
}

func (s *tuitionService) ListMine(ctx context.Context, actor authz.Actor, req dto.TuitionListRequest) (dto.TuitionListResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleStudent), "only students own tuitions"); err != nil {
		return dto.TuitionListResponse{}, err
	}
	filter := s.filterFrom(req)
	filter.StudentID = uintPtr(actor.ID)
	return s.list(ctx, filter)
}

func (s *tuitionService) Update(ctx context.Context, actor authz.Actor, id uint, req dto.TuitionUpdateRequest) (dto.TuitionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TuitionResponse{}, err
	}

	tuition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.TuitionResponse{}, notFound(err, "tuition not found")
	}
	if err := authz.Require(actor, authz.OwnerOrAdmin(tuition.StudentID), "you can only edit your own tuitions"); err != nil {
		return dto.TuitionResponse{}, err
	}
	if !tuition.Editable() {
		return dto.TuitionResponse{}, errdefs.Newf(errdefs.ErrInvalidState, "cannot edit a tuition that is %s", tuition.Status)
	}

	if req.Title != nil {
		tuition.Title = s.clean(*req.Title)
	}
	if req.Subject != nil {
		tuition.Subject = trimmed(req.Subject)
	}
	if req.Grade != nil {
		tuition.Grade = trimmed(req.Grade)
	}
	if req.Location != nil {
		tuition.Location = trimmed(req.Location)
	}
	if req.Salary != nil {
		tuition.Salary = *req.Salary
	}
	if req.DaysPerWeek != nil {
		tuition.DaysPerWeek = *req.DaysPerWeek
	}
	if req.ClassDuration != nil {
		tuition.ClassDuration = trimmed(req.ClassDuration)
	}
	if req.StudentGender != nil {
		tuition.StudentGender = *req.StudentGender
	}
	if req.TutorGenderPreference != nil {
		tuition.TutorGenderPreference = *req.TutorGenderPreference
	}
	if req.PreferredMedium != nil {
		tuition.PreferredMedium = *req.PreferredMedium
	}
	if req.TutoringType != nil {
		tuition.TutoringType = *req.TutoringType
	}
	if req.Requirements != nil {
		requirements := s.clean(*req.Requirements)
		if requirements == "" {
			return dto.TuitionResponse{}, errdefs.New(errdefs.ErrValidation, "requirements are required")
		}
		tuition.Requirements = requirements
	}
	if req.Description != nil {
		tuition.Description = s.clean(*req.Description)
	}
	if req.StudentDetails != nil {
		details, err := encodeStudentDetails(req.StudentDetails)
		if err != nil {
			return dto.TuitionResponse{}, err
		}
		tuition.StudentDetails = details
	}

	// Owner edits go back through moderation; admin edits keep the current decision.
	if actor.ID == tuition.StudentID && !actor.IsAdmin() {
		tuition.ApprovalStatus = models.ApprovalStatusPending
	}

	if err := s.repo.UpdateDetails(ctx, &tuition); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return dto.TuitionResponse{}, errdefs.New(errdefs.ErrInvalidState, "tuition can no longer be edited")
		}
		return dto.TuitionResponse{}, err
	}

	s.cache.Invalidate(ctx, tuition.StudentID)
	return dto.NewTuitionResponse(tuition), nil
}

func (s *tuitionService) UpdateStatus(ctx context.Context, actor authz.Actor, id uint, req dto.TuitionStatusRequest) (dto.TuitionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TuitionResponse{}, err
	}
	if req.Status == models.TuitionStatusOngoing {
		return dto.TuitionResponse{}, errdefs.New(errdefs.ErrInvalidState, "a tuition becomes ongoing only when an application is accepted")
	}

	tuition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.TuitionResponse{}, notFound(err, "tuition not found")
	}
	if err := authz.Require(actor, authz.OwnerOrAdmin(tuition.StudentID), "you can only change the status of your own tuitions"); err != nil {
		return dto.TuitionResponse{}, err
	}
	if !tuition.CanTransitionTo(req.Status) {
		return dto.TuitionResponse{}, errdefs.Newf(errdefs.ErrInvalidState, "cannot move tuition from %s to %s", tuition.Status, req.Status)
	}

	now := s.now()
	fields := map[string]interface{}{}
	if req.Status == models.TuitionStatusClosed || req.Status == models.TuitionStatusCompleted {
		fields["closed_at"] = now
	}

	previous := tuition.Status
	if err := s.repo.TransitionStatus(ctx, id, previous, req.Status, fields); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return dto.TuitionResponse{}, errdefs.New(errdefs.ErrInvalidState, "tuition status changed concurrently")
		}
		return dto.TuitionResponse{}, err
	}

	tuition.Status = req.Status
	if _, ok := fields["closed_at"]; ok {
		tuition.ClosedAt = &now
	}

	s.cache.Invalidate(ctx, tuition.StudentID)
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionTuitionStatus,
		EntityType: "tuition",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"from": previous, "to": req.Status},
	})

	return dto.NewTuitionResponse(tuition), nil
}

func (s *tuitionService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	tuition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "tuition not found")
	}
	if err := authz.Require(actor, authz.OwnerOrAdmin(tuition.StudentID), "you can only delete your own tuitions"); err != nil {
		return err
	}
	if !tuition.Deletable() {
		return errdefs.Newf(errdefs.ErrInvalidState, "cannot delete a tuition that is %s", tuition.Status)
	}

	if err := s.repo.DeleteOpen(ctx, id); err != nil {
		if errors.Is(err, repository.ErrHasPayments) {
			return errdefs.New(errdefs.ErrInvalidState, "tuition has payment history; close it instead")
		}
		if errors.Is(err, repository.ErrStaleState) {
			return errdefs.New(errdefs.ErrInvalidState, "tuition can no longer be deleted")
		}
		return err
	}

	s.cache.Invalidate(ctx, tuition.StudentID)
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionTuitionDeleted,
		EntityType: "tuition",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"title": tuition.Title},
	})
	return nil
}

func (s *tuitionService) filterFrom(req dto.TuitionListRequest) repository.TuitionFilter {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	return repository.TuitionFilter{
		Pagination:      repository.Pagination{Page: page, PageSize: pageSize},
		Search:          strings.TrimSpace(req.Search),
		Subject:         strings.TrimSpace(req.Subject),
		TutoringType:    strings.TrimSpace(req.TutoringType),
		PreferredMedium: strings.TrimSpace(req.PreferredMedium),
		MinSalary:       req.MinSalary,
		MaxSalary:       req.MaxSalary,
	}
}

func (s *tuitionService) list(ctx context.Context, filter repository.TuitionFilter) (dto.TuitionListResponse, error) {
	tuitions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.TuitionListResponse{}, err
	}
	return dto.TuitionListResponse{
		Items:      dto.NewTuitionResponseSlice(tuitions),
		Pagination: paginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *tuitionService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
