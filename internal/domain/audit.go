package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Audit vocabulary for takedown moderation.
const (
	AuditActionResolveTakedown = "resolve_takedown_request"
	AuditActionSubmitTakedown  = "submit_takedown_request"
	AuditResourceTakedown      = "review_takedown_request"
)

// AuditEntry is an append-only record of an administrative state change.
// Rows are never updated or deleted, so the model has no UpdatedAt.
type AuditEntry struct {
	ID                 string         `json:"id"                   gorm:"type:char(36);primaryKey"`
	ActorID            string         `json:"actor_id"             gorm:"type:varchar(64);not null;index"`
	Action             string         `json:"action"               gorm:"type:varchar(64);not null"`
	ResourceType       string         `json:"resource_type"        gorm:"type:varchar(64);not null;index:idx_audit_resource,priority:1"`
	ResourceID         string         `json:"resource_id"          gorm:"type:varchar(64);not null;index:idx_audit_resource,priority:2"`
	StatusBefore       string         `json:"status_before"        gorm:"type:varchar(20);not null"`
	StatusAfter        string         `json:"status_after"         gorm:"type:varchar(20);not null"`
	ReviewStatusBefore string         `json:"review_status_before" gorm:"type:varchar(20)"`
	ReviewStatusAfter  string         `json:"review_status_after"  gorm:"type:varchar(20)"`
	Changes            datatypes.JSON `json:"changes"`
	CorrelationID      string         `json:"correlation_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt          time.Time      `json:"created_at"           gorm:"not null;index:idx_audit_resource,priority:3"`
}

// TableName returns the database table name for AuditEntry.
func (AuditEntry) TableName() string { return "audit_log" }
