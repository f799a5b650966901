package domain

import "time"

// Idempotency records the outcome of a previously completed operation, keyed
// by the client-supplied key. Operation and ResourceID bind the key to one
// call site; reusing the key elsewhere is a conflict, not a replay.
//
// Payload holds the serialized outcome returned to the first caller and is
// replayed verbatim until ExpiresAt. A record is written with Finalized false
// inside the operation's transaction and flipped once the outcome is complete;
// a pending payload is never replayed.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idempotency_key"`
	Operation  string    `gorm:"type:TEXT NOT NULL"`
	ResourceID string    `gorm:"type:TEXT NOT NULL"`
	ActorID    string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	Payload    string    `gorm:"type:TEXT NOT NULL"`
	Finalized  bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Matches reports whether the record was produced by operation on resourceID.
func (i *Idempotency) Matches(operation, resourceID string) bool {
	return i.Operation == operation && i.ResourceID == resourceID
}
