// Package domain defines the persistence models for reviews, vendor takedown
// requests, and their moderation trail. These types are mapped with GORM and
// shared across the repository, service, and HTTP layers.
package domain

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// Takedown request lifecycle states. open is initial; accepted and rejected
// are terminal.
const (
	StatusOpen     = "open"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Admin decisions on a takedown request.
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// Actions applied to the review when a request is accepted.
const (
	ActionHide   = "hide"
	ActionRemove = "remove"
)

// Request priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Review visibility states.
const (
	ReviewStatusPublished = "published"
	ReviewStatusHidden    = "hidden"
	ReviewStatusRemoved   = "removed"
)

// Review is a customer review of a vendor. Only the fields the moderation
// workflow reads or writes are modeled here.
type Review struct {
	ID                   string     `json:"id"                     gorm:"type:char(36);primaryKey"`
	VendorID             string     `json:"vendor_id"              gorm:"type:varchar(64);not null;index"`
	ReviewerID           string     `json:"reviewer_id"            gorm:"type:varchar(64);not null;index"`
	Rating               int        `json:"rating"                 gorm:"not null;check:rating BETWEEN 1 AND 5"`
	Title                string     `json:"title"                  gorm:"type:varchar(255);not null"`
	Body                 string     `json:"body"                   gorm:"type:text;not null"`
	Status               string     `json:"status"                 gorm:"type:varchar(20);not null;default:'published';check:status IN ('published','hidden','removed')"`
	HasTakedownRequest   bool       `json:"has_takedown_request"   gorm:"not null;default:false;index"`
	TakedownRequestCount int        `json:"takedown_request_count" gorm:"not null;default:0"`
	RemovedAt            *time.Time `json:"removed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Review.
func (Review) TableName() string { return "reviews" }

// Evidence is one item a vendor attached to a takedown request. It is stored
// as JSON on the request row.
type Evidence struct {
	Type        string     `json:"type"`
	URL         string     `json:"url,omitempty"`
	Filename    string     `json:"filename,omitempty"`
	SizeBytes   int64      `json:"size_bytes,omitempty"`
	Description string     `json:"description"`
	Content     string     `json:"content,omitempty"`
	UploadedAt  *time.Time `json:"uploaded_at,omitempty"`
}

// TakedownRequest is a vendor's challenge against one review.
//
// Subject and classification fields are immutable after creation. Resolution
// fields are nil while Status is open and all set once it leaves open.
// Version is bumped on every write and guards the open→terminal transition.
// A partial unique index allows at most one open request per review.
type TakedownRequest struct {
	ID                string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	RequestNumber     string         `json:"request_number"     gorm:"type:varchar(50);not null;uniqueIndex"`
	Seq               int64          `json:"-"                  gorm:"not null;uniqueIndex"`
	ReviewID          string         `json:"review_id"          gorm:"type:char(36);not null;index:idx_takedown_review_id;uniqueIndex:ux_takedown_open_review,where:status = 'open'"`
	VendorID          string         `json:"vendor_id"          gorm:"type:varchar(64);not null;index:idx_takedown_vendor_status,priority:1"`
	Status            string         `json:"status"             gorm:"type:varchar(20);not null;default:'open';check:status IN ('open','accepted','rejected');index:idx_takedown_status_priority_created,priority:1;index:idx_takedown_vendor_status,priority:2"`
	ReasonCode        string         `json:"reason_code"        gorm:"type:varchar(50);not null"`
	ReasonDescription string         `json:"reason_description" gorm:"type:text;not null"`
	VendorNotes       *string        `json:"vendor_notes,omitempty" gorm:"type:text"`
	Evidence          datatypes.JSON `json:"evidence,omitempty"`
	Priority          string         `json:"priority"           gorm:"type:varchar(20);not null;check:priority IN ('high','medium','low');index:idx_takedown_status_priority_created,priority:2"`

	Decision         *string    `json:"decision,omitempty"          gorm:"type:varchar(20);check:decision IN ('accept','reject')"`
	ActionTaken      *string    `json:"action_taken,omitempty"      gorm:"type:varchar(20);check:action_taken IN ('hide','remove')"`
	ResolutionReason *string    `json:"resolution_reason,omitempty" gorm:"type:text"`
	AdminNotes       *string    `json:"admin_notes,omitempty"       gorm:"type:text"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy       *string    `json:"resolved_by,omitempty"       gorm:"type:varchar(64)"`

	Version   int64     `json:"-"          gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_takedown_status_priority_created,priority:3,sort:desc;index:idx_takedown_created_at,sort:desc"`
	UpdatedAt time.Time `json:"updated_at"`

	// Review is the challenged review. Requests are cascade-deleted with it.
	Review Review `json:"-" gorm:"foreignKey:ReviewID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for TakedownRequest.
func (TakedownRequest) TableName() string { return "review_takedown_requests" }

// IsTerminal reports whether the request has left the open state.
func (t *TakedownRequest) IsTerminal() bool { return t.Status != StatusOpen }

// Errors reported by CheckInvariants.
var (
	ErrOpenWithResolution     = errors.New("open request carries resolution fields")
	ErrResolvedWithoutFields  = errors.New("resolved request is missing resolution fields")
	ErrDecisionStatusMismatch = errors.New("decision does not match status")
	ErrActionDecisionMismatch = errors.New("action does not match decision")
)

// CheckInvariants verifies that the open/resolution fields and the
// decision/action pairing are consistent.
func (t *TakedownRequest) CheckInvariants() error {
	hasAny := t.Decision != nil || t.ActionTaken != nil || t.ResolutionReason != nil ||
		t.AdminNotes != nil || t.ResolvedAt != nil || t.ResolvedBy != nil
	if t.Status == StatusOpen {
		if hasAny {
			return ErrOpenWithResolution
		}
		return nil
	}
	if t.Decision == nil || t.ResolutionReason == nil || t.ResolvedAt == nil || t.ResolvedBy == nil {
		return ErrResolvedWithoutFields
	}
	if StatusForDecision(*t.Decision) != t.Status {
		return ErrDecisionStatusMismatch
	}
	switch *t.Decision {
	case DecisionAccept:
		if t.ActionTaken == nil || (*t.ActionTaken != ActionHide && *t.ActionTaken != ActionRemove) {
			return ErrActionDecisionMismatch
		}
	case DecisionReject:
		if t.ActionTaken != nil {
			return ErrActionDecisionMismatch
		}
	}
	return nil
}

// StatusForDecision maps a decision to the terminal status it produces.
func StatusForDecision(decision string) string {
	if decision == DecisionAccept {
		return StatusAccepted
	}
	return StatusRejected
}

// ReviewStatusAfter returns the review status that results from applying
// action, or current when no action applies (rejections).
func ReviewStatusAfter(action *string, current string) string {
	if action == nil {
		return current
	}
	switch *action {
	case ActionHide:
		return ReviewStatusHidden
	case ActionRemove:
		return ReviewStatusRemoved
	}
	return current
}

// ReviewModerationEvent is one entry in a review's moderation history.
type ReviewModerationEvent struct {
	ID                string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	ReviewID          string    `json:"review_id"           gorm:"type:char(36);not null;index:idx_moderation_review,priority:1"`
	TakedownRequestID string    `json:"takedown_request_id" gorm:"type:char(36);not null;index"`
	Action            string    `json:"action"              gorm:"type:varchar(20);not null"`
	Reason            string    `json:"reason"              gorm:"type:text;not null"`
	AdminID           string    `json:"admin_id"            gorm:"type:varchar(64);not null"`
	CreatedAt         time.Time `json:"created_at"          gorm:"index:idx_moderation_review,priority:2"`

	Review Review `json:"-" gorm:"foreignKey:ReviewID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ReviewModerationEvent.
func (ReviewModerationEvent) TableName() string { return "review_moderation_events" }
