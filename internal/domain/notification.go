package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Notification recipients and channels.
const (
	RecipientVendor   = "vendor"
	RecipientReviewer = "reviewer"

	ChannelEmail = "email"
	ChannelInApp = "in_app"
)

// Notification templates keyed by decision and action.
const (
	TemplateTakedownAcceptedHide   = "takedown_accepted_hide"
	TemplateTakedownAcceptedRemove = "takedown_accepted_remove"
	TemplateTakedownRejected       = "takedown_rejected"
)

// TemplateFor picks the notification template for a resolution.
func TemplateFor(decision string, action *string) string {
	if decision == DecisionReject || action == nil {
		return TemplateTakedownRejected
	}
	if *action == ActionRemove {
		return TemplateTakedownAcceptedRemove
	}
	return TemplateTakedownAcceptedHide
}

// Notification is an in-app inbox item delivered by the notification workers.
type Notification struct {
	ID                string         `json:"id"                  gorm:"type:char(36);primaryKey"`
	RecipientRole     string         `json:"recipient_role"      gorm:"type:varchar(20);not null"`
	RecipientID       string         `json:"recipient_id"        gorm:"type:varchar(64);not null;index:idx_notifications_recipient,priority:1"`
	Template          string         `json:"template"            gorm:"type:varchar(64);not null"`
	Subject           string         `json:"subject"             gorm:"type:varchar(255);not null"`
	Payload           datatypes.JSON `json:"payload"`
	TakedownRequestID string         `json:"takedown_request_id" gorm:"type:char(36);index"`
	ReadAt            *time.Time     `json:"read_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"          gorm:"index:idx_notifications_recipient,priority:2"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }
