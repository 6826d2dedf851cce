package models

import (
	"time"

	"gorm.io/datatypes"
)

// Tuition moderation states, controlled by admins.
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// Tuition fulfilment states.
const (
	TuitionStatusOpen      = "open"
	TuitionStatusOngoing   = "ongoing"
	TuitionStatusCompleted = "completed"
	TuitionStatusClosed    = "closed"
)

// Tuition is a tutoring request posted by a student.
type Tuition struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	StudentID             uint           `gorm:"not null;index" json:"student_id"`
	Title                 string         `gorm:"size:255;not null" json:"title"`
	Subject               string         `gorm:"size:128;not null;index" json:"subject"`
	Grade                 string         `gorm:"size:64;not null" json:"grade"`
	Location              string         `gorm:"size:255;not null" json:"location"`
	Salary                int64          `gorm:"not null" json:"salary"`
	DaysPerWeek           int            `gorm:"not null" json:"days_per_week"`
	ClassDuration         string         `gorm:"size:64" json:"class_duration"`
	StudentGender         string         `gorm:"size:16;default:Any" json:"student_gender"`
	TutorGenderPreference string         `gorm:"size:16;default:Any" json:"tutor_gender_preference"`
	PreferredMedium       string         `gorm:"size:32;default:Both" json:"preferred_medium"`
	TutoringType          string         `gorm:"size:32;not null" json:"tutoring_type"`
	Requirements          string         `gorm:"type:text;not null" json:"requirements"`
	Description           string         `gorm:"type:text" json:"description"`
	StudentDetails        datatypes.JSON `gorm:"type:json" json:"student_details"`
	ApprovalStatus        string         `gorm:"size:16;not null;index:idx_tuition_visibility,priority:1;default:pending" json:"approval_status"`
	Status                string         `gorm:"size:16;not null;index:idx_tuition_visibility,priority:2;default:open" json:"status"`
	Views                 int64          `gorm:"not null;default:0" json:"views"`
	ApprovedBy            *uint          `json:"approved_by"`
	ApprovedAt            *time.Time     `json:"approved_at"`
	RejectedBy            *uint          `json:"rejected_by"`
	RejectedAt            *time.Time     `json:"rejected_at"`
	RejectionReason       string         `gorm:"type:text" json:"rejection_reason"`
	ApprovedTutorID       *uint          `gorm:"index" json:"approved_tutor_id"`
	ClosedAt              *time.Time     `json:"closed_at"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	Student               *User          `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
	ApprovedTutor         *User          `gorm:"foreignKey:ApprovedTutorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"approved_tutor,omitempty"`
}

// IsPublic reports whether the tuition may appear in public listings.
func (t Tuition) IsPublic() bool {
	return t.ApprovalStatus == ApprovalStatusApproved && t.Status == TuitionStatusOpen
}

// AcceptsApplications reports whether tutors may apply.
func (t Tuition) AcceptsApplications() bool {
	return t.IsPublic()
}

// Editable reports whether the owner may still change the posting.
func (t Tuition) Editable() bool {
	return t.Status != TuitionStatusOngoing && t.Status != TuitionStatusCompleted
}

// Deletable reports whether the posting may be removed.
func (t Tuition) Deletable() bool {
	return t.Status == TuitionStatusOpen
}

// open -> ongoing is reserved for payment-confirmed acceptance and is absent here.
var tuitionLifecycleTransitions = map[string][]string{
	TuitionStatusOpen:    {TuitionStatusClosed},
	TuitionStatusOngoing: {TuitionStatusCompleted, TuitionStatusClosed},
}

// CanTransitionTo reports whether a lifecycle status change is allowed outside acceptance.
func (t Tuition) CanTransitionTo(next string) bool {
	for _, allowed := range tuitionLifecycleTransitions[t.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}
