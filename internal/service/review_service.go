package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

// ReviewService manages tutor reviews. Only a student who accepted one of the
// tutor's applications may review them, once.
type ReviewService interface {
	Create(ctx context.Context, actor authz.Actor, req dto.ReviewCreateRequest) (dto.ReviewResponse, error)
	Update(ctx context.Context, actor authz.Actor, id uint, req dto.ReviewUpdateRequest) (dto.ReviewResponse, error)
	Delete(ctx context.Context, actor authz.Actor, id uint) error
	ListForTutor(ctx context.Context, tutorID uint, page, pageSize int) (dto.ReviewListResponse, error)
	ListMine(ctx context.Context, actor authz.Actor, page, pageSize int) (dto.ReviewListResponse, error)
	CanReview(ctx context.Context, actor authz.Actor, tutorID uint) (dto.CanReviewResponse, error)
}

type reviewService struct {
	reviews      repository.ReviewRepository
	applications repository.ApplicationRepository
	users        repository.UserRepository
	validator    *validator.Validate
	notifier     Notifier
	activity     ActivityRecorder
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
}

// ReviewDeps groups the collaborators of the review service.
type ReviewDeps struct {
	Reviews      repository.ReviewRepository
	Applications repository.ApplicationRepository
	Users        repository.UserRepository
	Validator    *validator.Validate
	Notifier     Notifier
	Activity     ActivityRecorder
}

// NewReviewService constructs the review service.
func NewReviewService(deps ReviewDeps, logger zerolog.Logger) ReviewService {
	return &reviewService{
		reviews:      deps.Reviews,
		applications: deps.Applications,
		users:        deps.Users,
		validator:    deps.Validator,
		notifier:     notifierOrDiscard(deps.Notifier),
		activity:     deps.Activity,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "review_service").Logger(),
	}
}

func (s *reviewService) Create(ctx context.Context, actor authz.Actor, req dto.ReviewCreateRequest) (dto.ReviewResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleStudent), "only students can review tutors"); err != nil {
		return dto.ReviewResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ReviewResponse{}, err
	}
	if req.TutorID == actor.ID {
		return dto.ReviewResponse{}, errdefs.New(errdefs.ErrValidation, "you cannot review yourself")
	}

	tutor, err := s.tutor(ctx, req.TutorID)
	if err != nil {
		return dto.ReviewResponse{}, err
	}

	hired, err := s.applications.HasAccepted(ctx, actor.ID, tutor.ID)
	if err != nil {
		return dto.ReviewResponse{}, err
	}
	if !hired {
		return dto.ReviewResponse{}, errdefs.New(errdefs.ErrForbidden, "you can only review tutors you have hired")
	}

	comment := s.clean(req.Comment)
	if comment == "" {
		return dto.ReviewResponse{}, errdefs.New(errdefs.ErrValidation, "comment is required")
	}

	review := models.Review{
		TutorID:   tutor.ID,
		StudentID: actor.ID,
		Rating:    req.Rating,
		Comment:   comment,
	}
	if err := s.reviews.Create(ctx, &review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.ReviewResponse{}, errdefs.New(errdefs.ErrConflict, "you have already reviewed this tutor")
		}
		return dto.ReviewResponse{}, err
	}

	s.logger.Info().Uint("review_id", review.ID).Uint("tutor_id", tutor.ID).Int("rating", review.Rating).Msg("review submitted")

	s.notifier.Notify(Notice{
		UserID:  tutor.ID,
		Type:    models.NotificationReviewReceived,
		Title:   "New review",
		Message: fmt.Sprintf("You received a %d-star review.", review.Rating),
		Link:    fmt.Sprintf("/tutors/%d/reviews", tutor.ID),
	})

	return s.load(ctx, review.ID)
}

func (s *reviewService) Update(ctx context.Context, actor authz.Actor, id uint, req dto.ReviewUpdateRequest) (dto.ReviewResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ReviewResponse{}, err
	}

	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return dto.ReviewResponse{}, notFound(err, "review not found")
	}
	if err := authz.Require(actor, authz.IsOwner(review.StudentID), "you can only update your own reviews"); err != nil {
		return dto.ReviewResponse{}, err
	}

	fields := map[string]interface{}{}
	if req.Rating != nil {
		fields["rating"] = *req.Rating
	}
	if req.Comment != nil {
		comment := s.clean(*req.Comment)
		if comment == "" {
			return dto.ReviewResponse{}, errdefs.New(errdefs.ErrValidation, "comment is required")
		}
		fields["comment"] = comment
	}
	if len(fields) == 0 {
		return dto.NewReviewResponse(review), nil
	}

	if err := s.reviews.Update(ctx, id, fields); err != nil {
		return dto.ReviewResponse{}, notFound(err, "review not found")
	}
	return s.load(ctx, id)
}

// Delete removes a review. Admins may remove any review.
func (s *reviewService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "review not found")
	}
	if err := authz.Require(actor, authz.OwnerOrAdmin(review.StudentID), "you can only delete your own reviews"); err != nil {
		return err
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		return notFound(err, "review not found")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionReviewDeleted,
		EntityType: "review",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"tutor_id": review.TutorID, "rating": review.Rating},
	})
	return nil
}

func (s *reviewService) ListForTutor(ctx context.Context, tutorID uint, page, pageSize int) (dto.ReviewListResponse, error) {
	tutor, err := s.tutor(ctx, tutorID)
	if err != nil {
		return dto.ReviewListResponse{}, err
	}

	response, err := s.list(ctx, repository.ReviewFilter{TutorID: uintPtr(tutorID)}, page, pageSize)
	if err != nil {
		return dto.ReviewListResponse{}, err
	}
	response.AverageRating = tutor.Rating
	response.TotalReviews = tutor.TotalReviews
	return response, nil
}

func (s *reviewService) ListMine(ctx context.Context, actor authz.Actor, page, pageSize int) (dto.ReviewListResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleStudent), "only students write reviews"); err != nil {
		return dto.ReviewListResponse{}, err
	}
	return s.list(ctx, repository.ReviewFilter{StudentID: uintPtr(actor.ID)}, page, pageSize)
}

func (s *reviewService) CanReview(ctx context.Context, actor authz.Actor, tutorID uint) (dto.CanReviewResponse, error) {
	if err := authz.Require(actor, authz.HasRole(authz.RoleStudent), "only students review tutors"); err != nil {
		return dto.CanReviewResponse{}, err
	}

	var response dto.CanReviewResponse
	existing, err := s.reviews.GetByTutorAndStudent(ctx, tutorID, actor.ID)
	switch {
	case err == nil:
		review := dto.NewReviewResponse(existing)
		response.HasReviewed = true
		response.Review = &review
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.CanReviewResponse{}, err
	}

	if tutorID != actor.ID {
		response.HasHired, err = s.applications.HasAccepted(ctx, actor.ID, tutorID)
		if err != nil {
			return dto.CanReviewResponse{}, err
		}
	}
	response.CanReview = response.HasHired && !response.HasReviewed
	return response, nil
}

func (s *reviewService) list(ctx context.Context, filter repository.ReviewFilter, page, pageSize int) (dto.ReviewListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	filter.Pagination = repository.Pagination{Page: page, PageSize: pageSize}

	reviews, total, err := s.reviews.List(ctx, filter)
	if err != nil {
		return dto.ReviewListResponse{}, err
	}
	return dto.ReviewListResponse{
		Items:      dto.NewReviewResponseSlice(reviews),
		Pagination: paginationMeta(page, pageSize, total),
	}, nil
}

func (s *reviewService) tutor(ctx context.Context, id uint) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, notFound(err, "tutor not found")
	}
	if user.Role != models.UserRoleTutor {
		return models.User{}, errdefs.New(errdefs.ErrNotFound, "tutor not found")
	}
	return user, nil
}

func (s *reviewService) load(ctx context.Context, id uint) (dto.ReviewResponse, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return dto.ReviewResponse{}, notFound(err, "review not found")
	}
	return dto.NewReviewResponse(review), nil
}

func (s *reviewService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}
