package dto

import (
	"time"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// ApplicationCreateRequest is a tutor's application to a tuition.
type ApplicationCreateRequest struct {
	TuitionID      uint   `json:"tuition_id" validate:"required"`
	Qualifications string `json:"qualifications" validate:"required,min=20,max=2000"`
	Experience     string `json:"experience" validate:"required,max=1000"`
	ExpectedSalary int64  `json:"expected_salary" validate:"required,gt=0"`
	Message        string `json:"message" validate:"omitempty,max=1000"`
}

// ApplicationUpdateRequest edits a pending application.
type ApplicationUpdateRequest struct {
	Qualifications *string `json:"qualifications" validate:"omitempty,min=20,max=2000"`
	Experience     *string `json:"experience" validate:"omitempty,min=1,max=1000"`
	ExpectedSalary *int64  `json:"expected_salary" validate:"omitempty,gt=0"`
	Message        *string `json:"message" validate:"omitempty,max=1000"`
}

// ApplicationStatusRequest records the tuition owner's decision.
type ApplicationStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

// ApplicationListRequest filters application listings.
type ApplicationListRequest struct {
	Page     int
	PageSize int
	Status   string
}

// TuitionSummary is embedded in application payloads.
type TuitionSummary struct {
	ID             uint   `json:"id"`
	Title          string `json:"title"`
	Subject        string `json:"subject"`
	Grade          string `json:"grade"`
	Location       string `json:"location"`
	Salary         int64  `json:"salary"`
	Status         string `json:"status"`
	ApprovalStatus string `json:"approval_status"`
}

// ApplicationResponse is the serialized application.
type ApplicationResponse struct {
	ID              uint            `json:"id"`
	TuitionID       uint            `json:"tuition_id"`
	TutorID         uint            `json:"tutor_id"`
	StudentID       uint            `json:"student_id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Qualifications  string          `json:"qualifications"`
	Experience      string          `json:"experience"`
	ExpectedSalary  int64           `json:"expected_salary"`
	Message         string          `json:"message"`
	Status          string          `json:"status"`
	AppliedAt       time.Time       `json:"applied_at"`
	RespondedAt     *time.Time      `json:"responded_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	Tuition         *TuitionSummary `json:"tuition,omitempty"`
	Tutor           *UserSummary    `json:"tutor,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ApplicationListResponse wraps a page of applications.
type ApplicationListResponse struct {
	Items      []ApplicationResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// AppliedCheckResponse reports whether the caller applied to a tuition.
type AppliedCheckResponse struct {
	HasApplied    bool   `json:"has_applied"`
	ApplicationID *uint  `json:"application_id,omitempty"`
	Status        string `json:"status,omitempty"`
}

// NewTuitionSummary returns nil for an unloaded relation.
func NewTuitionSummary(tuition *models.Tuition) *TuitionSummary {
	if tuition == nil {
		return nil
	}
	return &TuitionSummary{
		ID:             tuition.ID,
		Title:          tuition.Title,
		Subject:        tuition.Subject,
		Grade:          tuition.Grade,
		Location:       tuition.Location,
		Salary:         tuition.Salary,
		Status:         tuition.Status,
		ApprovalStatus: tuition.ApprovalStatus,
	}
}

// NewApplicationResponse converts an application model into a DTO.
func NewApplicationResponse(model models.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:              model.ID,
		TuitionID:       model.TuitionID,
		TutorID:         model.TutorID,
		StudentID:       model.StudentID,
		Name:            model.Name,
		Email:           model.Email,
		Qualifications:  model.Qualifications,
		Experience:      model.Experience,
		ExpectedSalary:  model.ExpectedSalary,
		Message:         model.Message,
		Status:          model.Status,
		AppliedAt:       model.AppliedAt,
		RespondedAt:     model.RespondedAt,
		RejectionReason: model.RejectionReason,
		Tuition:         NewTuitionSummary(model.Tuition),
		Tutor:           NewUserSummary(model.Tutor),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// NewApplicationResponseSlice converts applications into DTOs.
func NewApplicationResponseSlice(applications []models.Application) []ApplicationResponse {
	responses := make([]ApplicationResponse, 0, len(applications))
	for _, application := range applications {
		responses = append(responses, NewApplicationResponse(application))
	}
	return responses
}
