package dto

import (
	"time"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// ReviewCreateRequest rates a hired tutor.
type ReviewCreateRequest struct {
	TutorID uint   `json:"tutor_id" validate:"required"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,min=10,max=500"`
}

// ReviewUpdateRequest edits the caller's review.
type ReviewUpdateRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,min=10,max=500"`
}

// ReviewerSummary is the public face of a reviewer.
type ReviewerSummary struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// ReviewResponse is the serialized review.
type ReviewResponse struct {
	ID        uint             `json:"id"`
	TutorID   uint             `json:"tutor_id"`
	StudentID uint             `json:"student_id"`
	Rating    int              `json:"rating"`
	Comment   string           `json:"comment"`
	Student   *ReviewerSummary `json:"student,omitempty"`
	Tutor     *ReviewerSummary `json:"tutor,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ReviewListResponse wraps a page of reviews. For a tutor listing it also
// carries the tutor's aggregate rating.
type ReviewListResponse struct {
	Items         []ReviewResponse `json:"items"`
	AverageRating float64          `json:"average_rating"`
	TotalReviews  int              `json:"total_reviews"`
	Pagination    PaginationMeta   `json:"pagination"`
}

// CanReviewResponse tells a student whether they may review a tutor.
type CanReviewResponse struct {
	CanReview   bool            `json:"can_review"`
	HasReviewed bool            `json:"has_reviewed"`
	HasHired    bool            `json:"has_hired"`
	Review      *ReviewResponse `json:"review,omitempty"`
}

func newReviewerSummary(user *models.User) *ReviewerSummary {
	if user == nil {
		return nil
	}
	return &ReviewerSummary{ID: user.ID, Name: user.Name, ProfileImage: user.ProfileImage}
}

// NewReviewResponse converts a review model into a DTO.
func NewReviewResponse(model models.Review) ReviewResponse {
	return ReviewResponse{
		ID:        model.ID,
		TutorID:   model.TutorID,
		StudentID: model.StudentID,
		Rating:    model.Rating,
		Comment:   model.Comment,
		Student:   newReviewerSummary(model.Student),
		Tutor:     newReviewerSummary(model.Tutor),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewReviewResponseSlice converts reviews into DTOs.
func NewReviewResponseSlice(reviews []models.Review) []ReviewResponse {
	responses := make([]ReviewResponse, 0, len(reviews))
	for _, review := range reviews {
		responses = append(responses, NewReviewResponse(review))
	}
	return responses
}
