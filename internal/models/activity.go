package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audited actions on exam entities.
const (
	ActivitySubmissionStarted   = "submission.started"
	ActivitySubmissionSubmitted = "submission.submitted"
	ActivitySubmissionGraded    = "submission.graded"
	ActivitySubmissionRegraded  = "submission.regraded"
	ActivityQuestionCreated     = "question.created"
	ActivityQuestionUpdated     = "question.updated"
	ActivityQuestionDeleted     = "question.deleted"
)

// ActivityLog captures auditable events triggered by students and teachers.
type ActivityLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ActorID       uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole     string            `gorm:"size:32;not null" json:"actor_role"`
	Action        string            `gorm:"size:64;not null;index" json:"action"`
	EntityType    string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID      *uint             `json:"entity_id"`
	CorrelationID string            `gorm:"size:64" json:"correlation_id"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
}
