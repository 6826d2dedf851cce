package dto

import (
	"time"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// UserResponse is the account representation visible to its owner and admins.
type UserResponse struct {
	ID              uint       `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	Status          string     `json:"status"`
	Phone           string     `json:"phone"`
	Address         string     `json:"address"`
	Location        string     `json:"location"`
	ProfileImage    string     `json:"profile_image"`
	Grade           string     `json:"grade,omitempty"`
	Institution     string     `json:"institution,omitempty"`
	Subjects        []string   `json:"subjects"`
	Experience      int        `json:"experience"`
	Bio             string     `json:"bio"`
	HourlyRate      int64      `json:"hourly_rate"`
	Rating          float64    `json:"rating"`
	TotalReviews    int        `json:"total_reviews"`
	TotalEarnings   int64      `json:"total_earnings"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PublicProfileResponse exposes tutor directory fields without contact data.
type PublicProfileResponse struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Location     string    `json:"location"`
	ProfileImage string    `json:"profile_image"`
	Institution  string    `json:"institution,omitempty"`
	Subjects     []string  `json:"subjects"`
	Experience   int       `json:"experience"`
	Bio          string    `json:"bio"`
	HourlyRate   int64     `json:"hourly_rate"`
	Rating       float64   `json:"rating"`
	TotalReviews int       `json:"total_reviews"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is embedded in tuition, application and payment payloads.
type UserSummary struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// UserListRequest filters account and directory listings.
type UserListRequest struct {
	Page     int
	PageSize int
	Search   string
	Subject  string
}

// UserListResponse wraps a page of accounts.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// PublicProfileListResponse wraps a page of directory entries.
type PublicProfileListResponse struct {
	Items      []PublicProfileResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

// ProfileUpdateRequest carries self-service profile edits.
type ProfileUpdateRequest struct {
	Name         *string   `json:"name" validate:"omitempty,min=2,max=255"`
	Phone        *string   `json:"phone" validate:"omitempty,max=32"`
	Address      *string   `json:"address" validate:"omitempty,max=255"`
	Location     *string   `json:"location" validate:"omitempty,max=255"`
	ProfileImage *string   `json:"profile_image" validate:"omitempty,url,max=512"`
	Grade        *string   `json:"grade" validate:"omitempty,max=64"`
	Institution  *string   `json:"institution" validate:"omitempty,max=255"`
	Subjects     *[]string `json:"subjects" validate:"omitempty,max=20,dive,required,max=64"`
	Experience   *int      `json:"experience" validate:"omitempty,gte=0,lte=60"`
	Bio          *string   `json:"bio" validate:"omitempty,max=500"`
	HourlyRate   *int64    `json:"hourly_rate" validate:"omitempty,gte=0"`
}

func subjectsOf(user models.User) []string {
	if user.Subjects == nil {
		return []string{}
	}
	return []string(user.Subjects)
}

// NewUserResponse converts a user model into its private DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            user.Role,
		Status:          user.Status,
		Phone:           user.Phone,
		Address:         user.Address,
		Location:        user.Location,
		ProfileImage:    user.ProfileImage,
		Grade:           user.Grade,
		Institution:     user.Institution,
		Subjects:        subjectsOf(user),
		Experience:      user.Experience,
		Bio:             user.Bio,
		HourlyRate:      user.HourlyRate,
		Rating:          user.Rating,
		TotalReviews:    user.TotalReviews,
		TotalEarnings:   user.TotalEarnings,
		ApprovedAt:      user.ApprovedAt,
		RejectionReason: user.RejectionReason,
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}
}

// NewUserResponseSlice converts users into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}
	return responses
}

// NewPublicProfileResponse converts a user model into its directory DTO.
func NewPublicProfileResponse(user models.User) PublicProfileResponse {
	return PublicProfileResponse{
		ID:           user.ID,
		Name:         user.Name,
		Role:         user.Role,
		Location:     user.Location,
		ProfileImage: user.ProfileImage,
		Institution:  user.Institution,
		Subjects:     subjectsOf(user),
		Experience:   user.Experience,
		Bio:          user.Bio,
		HourlyRate:   user.HourlyRate,
		Rating:       user.Rating,
		TotalReviews: user.TotalReviews,
		CreatedAt:    user.CreatedAt,
	}
}

// NewUserSummary returns nil for an unloaded relation.
func NewUserSummary(user *models.User) *UserSummary {
	if user == nil {
		return nil
	}
	return &UserSummary{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Phone:        user.Phone,
		ProfileImage: user.ProfileImage,
	}
}
