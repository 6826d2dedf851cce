package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
)

// UserService serves self-service profiles and the public tutor directory.
type UserService interface {
	UpdateProfile(ctx context.Context, userID uint, req dto.ProfileUpdateRequest) (dto.UserResponse, error)
	ListTutors(ctx context.Context, req dto.UserListRequest) (dto.PublicProfileListResponse, error)
	GetPublicProfile(ctx context.Context, id uint) (dto.PublicProfileResponse, error)
}

type userService struct {
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs the profile service.
func NewUserService(users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) UpdateProfile(ctx context.Context, userID uint, req dto.ProfileUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, notFound(err, "user not found")
	}

	if req.Name != nil {
		user.Name = trimmed(req.Name)
	}
	if req.Phone != nil {
		user.Phone = trimmed(req.Phone)
	}
	if req.Address != nil {
		user.Address = trimmed(req.Address)
	}
	if req.Location != nil {
		user.Location = trimmed(req.Location)
	}
	if req.ProfileImage != nil {
		user.ProfileImage = trimmed(req.ProfileImage)
	}
	if req.Grade != nil {
		user.Grade = trimmed(req.Grade)
	}
	if req.Institution != nil {
		user.Institution = trimmed(req.Institution)
	}

	tutorFieldsSet := req.Subjects != nil || req.Experience != nil || req.Bio != nil || req.HourlyRate != nil
	if tutorFieldsSet && user.Role != models.UserRoleTutor {
		return dto.UserResponse{}, errdefs.New(errdefs.ErrValidation, "only tutors have subjects, experience, bio and hourly rate")
	}
	if req.Subjects != nil {
		user.Subjects = datatypes.JSONSlice[string](cleanSubjects(*req.Subjects))
	}
	if req.Experience != nil {
		user.Experience = *req.Experience
	}
	if req.Bio != nil {
		user.Bio = trimmed(req.Bio)
	}
	if req.HourlyRate != nil {
		user.HourlyRate = *req.HourlyRate
	}

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(user), nil
}

func (s *userService) ListTutors(ctx context.Context, req dto.UserListRequest) (dto.PublicProfileListResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	users, total, err := s.users.List(ctx, repository.UserFilter{
		Pagination: repository.Pagination{Page: page, PageSize: pageSize},
		Role:       models.UserRoleTutor,
		Status:     models.UserStatusApproved,
		Search:     strings.TrimSpace(req.Search),
		Subject:    strings.TrimSpace(req.Subject),
	})
	if err != nil {
		return dto.PublicProfileListResponse{}, err
	}

	items := make([]dto.PublicProfileResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.NewPublicProfileResponse(user))
	}

	return dto.PublicProfileListResponse{Items: items, Pagination: paginationMeta(page, pageSize, total)}, nil
}

// GetPublicProfile only exposes approved tutors.
func (s *userService) GetPublicProfile(ctx context.Context, id uint) (dto.PublicProfileResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return dto.PublicProfileResponse{}, notFound(err, "profile not found")
	}
	if user.Role != models.UserRoleTutor || user.Status != models.UserStatusApproved {
		return dto.PublicProfileResponse{}, errdefs.New(errdefs.ErrNotFound, "profile not found")
	}
	return dto.NewPublicProfileResponse(user), nil
}
