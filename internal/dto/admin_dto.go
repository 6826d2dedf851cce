package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/tutorlink-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives page counts from a total.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: totalPages}
}

// AdminUserListRequest defines filters for listing accounts.
type AdminUserListRequest struct {
	Page     int
	PageSize int
	Role     string
	Status   string
	Search   string
}

// AdminRoleUpdateRequest changes an account's role.
type AdminRoleUpdateRequest struct {
	Role string `json:"role" validate:"required,oneof=student tutor admin"`
}

// AdminStatusUpdateRequest changes an account's status. "active" is accepted as approved.
type AdminStatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved active rejected suspended blocked"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// AdminTuitionListRequest defines filters for the moderation queue.
type AdminTuitionListRequest struct {
	Page           int
	PageSize       int
	ApprovalStatus string
	Status         string
	Search         string
}

// AdminTuitionRejectRequest carries the mandatory rejection reason.
type AdminTuitionRejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// AdminPaymentListRequest filters the payment ledger.
type AdminPaymentListRequest struct {
	Page     int
	PageSize int
	Status   string
}

// AdminPaymentStatusRequest overrides a payment status. Refunds run the reversal.
type AdminPaymentStatusRequest struct {
	Status       string `json:"status" validate:"required,oneof=pending processing completed failed refunded cancelled"`
	RefundReason string `json:"refund_reason" validate:"omitempty,max=1000"`
	RefundAmount int64  `json:"refund_amount" validate:"omitempty,gt=0"`
}

// AdminActivityListRequest defines filters for retrieving activity logs.
type AdminActivityListRequest struct {
	Page       int
	PageSize   int
	ActorID    uint
	Action     string
	EntityType string
	EntityID   uint
}

// AdminActivityResponse serializes activity log entries.
type AdminActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// AdminActivityListResponse wraps paginated activity logs.
type AdminActivityListResponse struct {
	Items      []AdminActivityResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(data)
}

// NewAdminActivityResponse converts a model into an activity DTO.
func NewAdminActivityResponse(entry models.ActivityLog) AdminActivityResponse {
	return AdminActivityResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadataFromJSON(entry.Metadata),
		CreatedAt:  entry.CreatedAt,
	}
}
