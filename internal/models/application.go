package models

import "time"

// Application statuses. Everything other than pending is terminal.
const (
	ApplicationStatusPending   = "pending"
	ApplicationStatusAccepted  = "accepted"
	ApplicationStatusRejected  = "rejected"
	ApplicationStatusWithdrawn = "withdrawn"
)

// SiblingRejectionReason is stamped on applications closed out by another acceptance.
const SiblingRejectionReason = "Another tutor has been selected"

// Application is a tutor's bid on one tuition.
type Application struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	TuitionID       uint       `gorm:"not null;uniqueIndex:idx_application_tuition_tutor,priority:1" json:"tuition_id"`
	TutorID         uint       `gorm:"not null;uniqueIndex:idx_application_tuition_tutor,priority:2;index" json:"tutor_id"`
	StudentID       uint       `gorm:"not null;index" json:"student_id"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	Email           string     `gorm:"size:255;not null" json:"email"`
	Qualifications  string     `gorm:"type:text;not null" json:"qualifications"`
	Experience      string     `gorm:"type:text;not null" json:"experience"`
	ExpectedSalary  int64      `gorm:"not null" json:"expected_salary"`
	Message         string     `gorm:"type:text" json:"message"`
	Status          string     `gorm:"size:16;not null;index;default:pending" json:"status"`
	AppliedAt       time.Time  `gorm:"not null" json:"applied_at"`
	RespondedAt     *time.Time `json:"responded_at"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason"`
	// ClosedByPaymentID marks a rejection written by an acceptance; a refund of
	// that payment reopens exactly these applications.
	ClosedByPaymentID *uint     `gorm:"index" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Tuition           *Tuition  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"tuition,omitempty"`
	Tutor             *User     `gorm:"foreignKey:TutorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"tutor,omitempty"`
}

// IsPending reports whether the application still awaits a decision.
func (a Application) IsPending() bool {
	return a.Status == ApplicationStatusPending
}
