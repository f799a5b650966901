package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/review-takedown-backend/internal/domain"
)

// CreateAuditEntry appends an audit row. Pass the surrounding transaction so
// the entry commits or rolls back with the change it describes.
func CreateAuditEntry(ctx context.Context, db *gorm.DB, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(e).Error
}

// ListAuditEntries returns the audit trail of one resource, oldest first.
func ListAuditEntries(ctx context.Context, db *gorm.DB, resourceType, resourceID string) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC").Order("id ASC").
		Find(&out).Error
	return out, err
}
