package models

import (
	"time"

	"gorm.io/datatypes"
)

// User roles.
const (
	UserRoleStudent = "student"
	UserRoleTutor   = "tutor"
	UserRoleAdmin   = "admin"
)

// User account statuses. "active" is accepted as input and stored as approved.
const (
	UserStatusPending   = "pending"
	UserStatusApproved  = "approved"
	UserStatusRejected  = "rejected"
	UserStatusSuspended = "suspended"
	UserStatusBlocked   = "blocked"
)

// User is a platform account. Tutor-only attributes stay zero for students and admins.
type User struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	Name            string                      `gorm:"size:255;not null" json:"name"`
	Email           string                      `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash    string                      `gorm:"size:255;not null" json:"-"`
	Role            string                      `gorm:"size:16;not null;index;default:student" json:"role"`
	Status          string                      `gorm:"size:16;not null;index;default:pending" json:"status"`
	Phone           string                      `gorm:"size:32" json:"phone"`
	Address         string                      `gorm:"size:255" json:"address"`
	Location        string                      `gorm:"size:255" json:"location"`
	ProfileImage    string                      `gorm:"size:512" json:"profile_image"`
	Grade           string                      `gorm:"size:64" json:"grade"`
	Institution     string                      `gorm:"size:255" json:"institution"`
	Subjects        datatypes.JSONSlice[string] `gorm:"type:json" json:"subjects"`
	Experience      int                         `gorm:"not null;default:0" json:"experience"`
	Bio             string                      `gorm:"size:500" json:"bio"`
	HourlyRate      int64                       `gorm:"not null;default:0" json:"hourly_rate"`
	Rating          float64                     `gorm:"not null;default:0" json:"rating"`
	TotalReviews    int                         `gorm:"not null;default:0" json:"total_reviews"`
	TotalEarnings   int64                       `gorm:"not null;default:0" json:"total_earnings"`
	ApprovedBy      *uint                       `json:"approved_by"`
	ApprovedAt      *time.Time                  `json:"approved_at"`
	RejectionReason string                      `gorm:"type:text" json:"rejection_reason"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// IsBlocked reports whether the account is barred from authenticating.
func (u User) IsBlocked() bool {
	return u.Status == UserStatusBlocked
}

// IsAdmin reports whether the account holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// NormalizeUserStatus maps accepted aliases onto stored statuses and reports validity.
func NormalizeUserStatus(status string) (string, bool) {
	switch status {
	case "active", UserStatusApproved:
		return UserStatusApproved, true
	case UserStatusPending, UserStatusRejected, UserStatusSuspended, UserStatusBlocked:
		return status, true
	default:
		return "", false
	}
}
