package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the audit trail of privileged and state-changing actions.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	EntityType string            `gorm:"size:64;not null;index:idx_activity_entity,priority:1" json:"entity_type"`
	EntityID   *uint             `gorm:"index:idx_activity_entity,priority:2" json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}
