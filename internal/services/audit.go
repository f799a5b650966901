package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/review-takedown-backend/internal/domain"
	"github.com/tbourn/review-takedown-backend/internal/repo"
)

// AuditSink appends audit entries. Append receives the transaction of the
// change being audited and must write through it; an error aborts the change.
type AuditSink interface {
	Append(ctx context.Context, tx *gorm.DB, e *domain.AuditEntry) error
}

// DBAuditSink stores entries in the audit_log table.
type DBAuditSink struct{}

// Append implements AuditSink.
func (DBAuditSink) Append(ctx context.Context, tx *gorm.DB, e *domain.AuditEntry) error {
	return repo.CreateAuditEntry(ctx, tx, e)
}
