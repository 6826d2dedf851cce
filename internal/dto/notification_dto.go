package dto

import (
	"time"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// NotificationResponse is the serialized notification, also pushed over the socket.
type NotificationResponse struct {
	ID                   uint      `json:"id"`
	UserID               uint      `json:"user_id"`
	Type                 string    `json:"type"`
	Title                string    `json:"title"`
	Message              string    `json:"message"`
	Link                 string    `json:"link,omitempty"`
	Priority             string    `json:"priority"`
	IsRead               bool      `json:"is_read"`
	RelatedTuitionID     *uint     `json:"related_tuition_id,omitempty"`
	RelatedApplicationID *uint     `json:"related_application_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// NotificationListResponse wraps a page of notifications with the unread count.
type NotificationListResponse struct {
	Items       []NotificationResponse `json:"items"`
	UnreadCount int64                  `json:"unread_count"`
	Pagination  PaginationMeta         `json:"pagination"`
}

// NewNotificationResponse converts a notification model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:                   model.ID,
		UserID:               model.UserID,
		Type:                 model.Type,
		Title:                model.Title,
		Message:              model.Message,
		Link:                 model.Link,
		Priority:             model.Priority,
		IsRead:               model.IsRead,
		RelatedTuitionID:     model.RelatedTuitionID,
		RelatedApplicationID: model.RelatedApplicationID,
		CreatedAt:            model.CreatedAt,
	}
}
