package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorlink-api/internal/authz"
	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/errdefs"
	"github.com/noah-isme/tutorlink-api/internal/models"
	"github.com/noah-isme/tutorlink-api/internal/repository"
)

var errInvalidCredentials = errdefs.New(errdefs.ErrUnauthenticated, "invalid email or password")

// AuthService registers accounts, verifies credentials and issues bearer tokens.
type AuthService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (dto.AuthResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error)
	Me(ctx context.Context, userID uint) (dto.UserResponse, error)
	ChangePassword(ctx context.Context, userID uint, req dto.ChangePasswordRequest) error
	AccountStatus(ctx context.Context, userID uint) (string, error)
}

type authService struct {
	users      repository.UserRepository
	validator  *validator.Validate
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	logger     zerolog.Logger
	now        func() time.Time
}

// NewAuthService constructs the authentication service.
func NewAuthService(users repository.UserRepository, validate *validator.Validate, secret string, ttl time.Duration, logger zerolog.Logger) AuthService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &authService{
		users:      users,
		validator:  validate,
		secret:     []byte(secret),
		ttl:        ttl,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger.With().Str("component", "auth_service").Logger(),
		now:        time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	role := authz.NormalizeRole(req.Role)
	if role == "" {
		role = authz.RoleStudent
	}
	if role == authz.RoleAdmin {
		return dto.AuthResponse{}, errdefs.New(errdefs.ErrForbidden, "admin accounts cannot be self-registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserStatusPending,
		Phone:        strings.TrimSpace(req.Phone),
		Location:     strings.TrimSpace(req.Location),
	}
	switch role {
	case authz.RoleStudent:
		user.Grade = strings.TrimSpace(req.Grade)
		user.Institution = strings.TrimSpace(req.Institution)
	case authz.RoleTutor:
		user.Subjects = datatypes.JSONSlice[string](cleanSubjects(req.Subjects))
		user.Experience = req.Experience
		user.Bio = strings.TrimSpace(req.Bio)
		user.HourlyRate = req.HourlyRate
		user.Institution = strings.TrimSpace(req.Institution)
	}

	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.AuthResponse{}, errdefs.New(errdefs.ErrConflict, "email is already registered")
		}
		return dto.AuthResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("account registered")

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, errInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return dto.AuthResponse{}, errInvalidCredentials
	}

	if user.IsBlocked() {
		s.logger.Warn().Uint("user_id", user.ID).Msg("blocked account attempted login")
		return dto.AuthResponse{}, errdefs.New(errdefs.ErrForbidden, "your account has been blocked")
	}

	if selected := authz.NormalizeRole(req.SelectedRole); selected != "" && selected != user.Role {
		return dto.AuthResponse{}, errdefs.Newf(errdefs.ErrForbidden, "this account is registered as %s, not %s", user.Role, selected)
	}

	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, userID uint) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, notFound(err, "user not found")
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uint, req dto.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return notFound(err, "user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return errdefs.New(errdefs.ErrValidation, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.users.UpdateFields(ctx, userID, map[string]interface{}{"password_hash": string(hash)})
}

// AccountStatus returns the stored status used by the request guard.
func (s *authService) AccountStatus(ctx context.Context, userID uint) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errdefs.New(errdefs.ErrUnauthenticated, "account no longer exists")
		}
		return "", err
	}
	return user.Status, nil
}

func (s *authService) issue(user models.User) (dto.AuthResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(user.ID), 10),
		"email": user.Email,
		"role":  user.Role,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return dto.AuthResponse{
		Token:         token,
		ExpiresAt:     expiresAt,
		User:          dto.NewUserResponse(user),
		StatusWarning: statusWarning(user.Status),
	}, nil
}

func statusWarning(status string) string {
	switch status {
	case models.UserStatusPending:
		return "Your account is pending admin approval. Some features may be limited."
	case models.UserStatusRejected:
		return "Your account application was rejected. Please contact support."
	case models.UserStatusSuspended:
		return "Your account is suspended. Please contact support."
	default:
		return ""
	}
}

func cleanSubjects(subjects []string) []string {
	seen := make(map[string]struct{}, len(subjects))
	cleaned := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		subject = strings.TrimSpace(subject)
		key := strings.ToLower(subject)
		if subject == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, subject)
	}
	return cleaned
}
