package models

import "time"

// Notification types.
const (
	NotificationApplicationReceived = "application_received"
	NotificationApplicationAccepted = "application_accepted"
	NotificationApplicationRejected = "application_rejected"
	NotificationTuitionApproved     = "tuition_approved"
	NotificationTuitionRejected     = "tuition_rejected"
	NotificationPaymentReceived     = "payment_received"
	NotificationPaymentMade         = "payment_made"
	NotificationPaymentRefunded     = "payment_refunded"
	NotificationReviewReceived      = "review_received"
	NotificationAccountUpdate       = "account_update"
	NotificationSystemAlert         = "system_alert"
)

// Notification priorities.
const (
	NotificationPriorityLow    = "low"
	NotificationPriorityMedium = "medium"
	NotificationPriorityHigh   = "high"
	NotificationPriorityUrgent = "urgent"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               uint      `gorm:"not null;index" json:"user_id"`
	Type                 string    `gorm:"size:64;not null" json:"type"`
	Title                string    `gorm:"size:255;not null" json:"title"`
	Message              string    `gorm:"type:text;not null" json:"message"`
	Link                 string    `gorm:"size:512" json:"link"`
	Priority             string    `gorm:"size:16;not null;default:medium" json:"priority"`
	IsRead               bool      `gorm:"not null;default:false;index" json:"is_read"`
	RelatedTuitionID     *uint     `json:"related_tuition_id"`
	RelatedApplicationID *uint     `json:"related_application_id"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
