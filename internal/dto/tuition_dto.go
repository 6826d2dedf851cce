package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// TuitionCreateRequest is the payload students submit to post a tuition.
type TuitionCreateRequest struct {
	Title                 string                 `json:"title" validate:"required,min=3,max=255"`
	Subject               string                 `json:"subject" validate:"required,max=128"`
	Grade                 string                 `json:"grade" validate:"required,max=64"`
	Location              string                 `json:"location" validate:"required,max=255"`
	Salary                int64                  `json:"salary" validate:"required,gt=0"`
	DaysPerWeek           int                    `json:"days_per_week" validate:"required,min=1,max=7"`
	ClassDuration         string                 `json:"class_duration" validate:"omitempty,max=64"`
	StudentGender         string                 `json:"student_gender" validate:"omitempty,oneof=Male Female Any"`
	TutorGenderPreference string                 `json:"tutor_gender_preference" validate:"omitempty,oneof=Male Female Any"`
	PreferredMedium       string                 `json:"preferred_medium" validate:"omitempty,oneof='Bangla Medium' 'English Medium' 'English Version' Both"`
	TutoringType          string                 `json:"tutoring_type" validate:"required,oneof='Home Tutoring' 'Online Tutoring' Both"`
	Requirements          string                 `json:"requirements" validate:"required,max=2000"`
	Description           string                 `json:"description" validate:"omitempty,max=5000"`
	StudentDetails        map[string]interface{} `json:"student_details"`
}

// TuitionUpdateRequest carries partial edits. Status and moderation fields are
// changed through their own endpoints.
type TuitionUpdateRequest struct {
	Title                 *string                `json:"title" validate:"omitempty,min=3,max=255"`
	Subject               *string                `json:"subject" validate:"omitempty,min=1,max=128"`
	Grade                 *string                `json:"grade" validate:"omitempty,min=1,max=64"`
	Location              *string                `json:"location" validate:"omitempty,min=1,max=255"`
	Salary                *int64                 `json:"salary" validate:"omitempty,gt=0"`
	DaysPerWeek           *int                   `json:"days_per_week" validate:"omitempty,min=1,max=7"`
	ClassDuration         *string                `json:"class_duration" validate:"omitempty,max=64"`
	StudentGender         *string                `json:"student_gender" validate:"omitempty,oneof=Male Female Any"`
	TutorGenderPreference *string                `json:"tutor_gender_preference" validate:"omitempty,oneof=Male Female Any"`
	PreferredMedium       *string                `json:"preferred_medium" validate:"omitempty,oneof='Bangla Medium' 'English Medium' 'English Version' Both"`
	TutoringType          *string                `json:"tutoring_type" validate:"omitempty,oneof='Home Tutoring' 'Online Tutoring' Both"`
	Requirements          *string                `json:"requirements" validate:"omitempty,min=1,max=2000"`
	Description           *string                `json:"description" validate:"omitempty,max=5000"`
	StudentDetails        map[string]interface{} `json:"student_details"`
}

// TuitionStatusRequest asks for a lifecycle transition.
type TuitionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open ongoing completed closed"`
}

// TuitionListRequest holds the public listing filters.
type TuitionListRequest struct {
	Page            int
	PageSize        int
	Search          string
	Subject         string
	TutoringType    string
	PreferredMedium string
	MinSalary       *int64
	MaxSalary       *int64
}

// TuitionResponse is the serialized tuition.
type TuitionResponse struct {
	ID                    uint                   `json:"id"`
	StudentID             uint                   `json:"student_id"`
	Title                 string                 `json:"title"`
	Subject               string                 `json:"subject"`
	Grade                 string                 `json:"grade"`
	Location              string                 `json:"location"`
	Salary                int64                  `json:"salary"`
	DaysPerWeek           int                    `json:"days_per_week"`
	ClassDuration         string                 `json:"class_duration"`
	StudentGender         string                 `json:"student_gender"`
	TutorGenderPreference string                 `json:"tutor_gender_preference"`
	PreferredMedium       string                 `json:"preferred_medium"`
	TutoringType          string                 `json:"tutoring_type"`
	Requirements          string                 `json:"requirements"`
	Description           string                 `json:"description"`
	StudentDetails        map[string]interface{} `json:"student_details"`
	ApprovalStatus        string                 `json:"approval_status"`
	Status                string                 `json:"status"`
	Views                 int64                  `json:"views"`
	ApprovedAt            *time.Time             `json:"approved_at,omitempty"`
	RejectedAt            *time.Time             `json:"rejected_at,omitempty"`
	RejectionReason       string                 `json:"rejection_reason,omitempty"`
	ApprovedTutorID       *uint                  `json:"approved_tutor_id,omitempty"`
	ClosedAt              *time.Time             `json:"closed_at,omitempty"`
	Student               *UserSummary           `json:"student,omitempty"`
	ApprovedTutor         *UserSummary           `json:"approved_tutor,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// TuitionListResponse wraps a page of tuitions.
type TuitionListResponse struct {
	Items      []TuitionResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

func detailsFromJSON(raw []byte) map[string]interface{} {
	details := map[string]interface{}{}
	if len(raw) == 0 {
		return details
	}
	_ = json.Unmarshal(raw, &details)
	return details
}

// NewTuitionResponse converts a tuition model into a DTO.
func NewTuitionResponse(model models.Tuition) TuitionResponse {
	return TuitionResponse{
		ID:                    model.ID,
		StudentID:             model.StudentID,
		Title:                 model.Title,
		Subject:               model.Subject,
		Grade:                 model.Grade,
		Location:              model.Location,
		Salary:                model.Salary,
		DaysPerWeek:           model.DaysPerWeek,
		ClassDuration:         model.ClassDuration,
		StudentGender:         model.StudentGender,
		TutorGenderPreference: model.TutorGenderPreference,
		PreferredMedium:       model.PreferredMedium,
		TutoringType:          model.TutoringType,
		Requirements:          model.Requirements,
		Description:           model.Description,
		StudentDetails:        detailsFromJSON(model.StudentDetails),
		ApprovalStatus:        model.ApprovalStatus,
		Status:                model.Status,
		Views:                 model.Views,
		ApprovedAt:            model.ApprovedAt,
		RejectedAt:            model.RejectedAt,
		RejectionReason:       model.RejectionReason,
		ApprovedTutorID:       model.ApprovedTutorID,
		ClosedAt:              model.ClosedAt,
		Student:               NewUserSummary(model.Student),
		ApprovedTutor:         NewUserSummary(model.ApprovedTutor),
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	}
}

// NewTuitionResponseSlice converts tuitions into DTOs.
func NewTuitionResponseSlice(tuitions []models.Tuition) []TuitionResponse {
	responses := make([]TuitionResponse, 0, len(tuitions))
	for _, tuition := range tuitions {
		responses = append(responses, NewTuitionResponse(tuition))
	}
	return responses
}
