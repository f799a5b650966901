// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// TakedownRequest model.
//
// All functions take a *gorm.DB, which may be a transaction handle. They
// follow the thin-repository approach: persistence and query composition
// only, with state-machine rules left to the services package.
//
// Error semantics:
//   - Missing rows surface as ErrNotFound.
//   - A compare-and-swap update that matches no row returns ErrStaleVersion.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/review-takedown-backend/internal/domain"
)

// TakedownFilter narrows ListTakedownRequests. Zero values disable a filter.
type TakedownFilter struct {
	Status     string
	ReasonCode string
	VendorID   string
	From       *time.Time
	To         *time.Time
	SortBy     string // "created_at" (default) or "priority"
	SortDesc   bool
}

// FormatRequestNumber renders the human-readable number for a sequence value.
func FormatRequestNumber(year int, seq int64) string {
	return fmt.Sprintf("TR-%04d-%06d", year, seq)
}

// CreateTakedownRequest inserts t, assigning ID, Seq and RequestNumber.
// Seq is one past the current maximum; the unique index on seq rejects a
// concurrent writer that computed the same value (returned as ErrDuplicate).
func CreateTakedownRequest(ctx context.Context, db *gorm.DB, t *domain.TakedownRequest) error {
	var maxSeq int64
	if err := db.WithContext(ctx).
		Model(&domain.TakedownRequest{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return err
	}

	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	t.Seq = maxSeq + 1
	t.RequestNumber = FormatRequestNumber(t.CreatedAt.Year(), t.Seq)
	if t.Status == "" {
		t.Status = domain.StatusOpen
	}
	t.Version = 1

	if err := db.WithContext(ctx).Omit(clause.Associations).Create(t).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetTakedownRequest fetches a request by ID, or ErrNotFound.
func GetTakedownRequest(ctx context.Context, db *gorm.DB, id string) (*domain.TakedownRequest, error) {
	var t domain.TakedownRequest
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// LockTakedownRequest reads a request inside a transaction, taking a row lock
// (SELECT ... FOR UPDATE) where the dialect supports it. On dialects without
// row locks the caller relies on the version guard in ResolveTakedownRequest.
func LockTakedownRequest(ctx context.Context, tx *gorm.DB, id string) (*domain.TakedownRequest, error) {
	q := tx.WithContext(ctx)
	if supportsRowLocks(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t domain.TakedownRequest
	if err := q.Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ResolveTakedownRequest writes the resolution fields of t only if the row is
// still open at expectedVersion, bumping the version. It returns
// ErrStaleVersion when the guard matches no row.
func ResolveTakedownRequest(ctx context.Context, tx *gorm.DB, t *domain.TakedownRequest, expectedVersion int64) error {
	res := tx.WithContext(ctx).
		Model(&domain.TakedownRequest{}).
		Where("id = ? AND version = ? AND status = ?", t.ID, expectedVersion, domain.StatusOpen).
		Updates(map[string]any{
			"status":            t.Status,
			"decision":          t.Decision,
			"action_taken":      t.ActionTaken,
			"resolution_reason": t.ResolutionReason,
			"admin_notes":       t.AdminNotes,
			"resolved_at":       t.ResolvedAt,
			"resolved_by":       t.ResolvedBy,
			"version":           expectedVersion + 1,
			"updated_at":        t.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	t.Version = expectedVersion + 1
	return nil
}

// HasOpenTakedownForReview reports whether reviewID already has an open request.
func HasOpenTakedownForReview(ctx context.Context, db *gorm.DB, reviewID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.TakedownRequest{}).
		Where("review_id = ? AND status = ?", reviewID, domain.StatusOpen).
		Count(&n).Error
	return n > 0, err
}

// ListTakedownRequests returns one page of requests matching f and the total
// number of matches. Priority sorting orders high, medium, low and breaks
// ties by creation time in the same direction.
func ListTakedownRequests(ctx context.Context, db *gorm.DB, f TakedownFilter, offset, limit int) ([]domain.TakedownRequest, int64, error) {
	filtered := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&domain.TakedownRequest{})
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.ReasonCode != "" {
			q = q.Where("reason_code = ?", f.ReasonCode)
		}
		if f.VendorID != "" {
			q = q.Where("vendor_id = ?", f.VendorID)
		}
		if f.From != nil {
			q = q.Where("created_at >= ?", *f.From)
		}
		if f.To != nil {
			q = q.Where("created_at <= ?", *f.To)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.TakedownRequest{}, 0, nil
	}

	q := filtered()
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	if f.SortBy == "priority" {
		// rank: high=1, medium=2, low=3; "desc" puts high first.
		rankDir := "ASC"
		if !f.SortDesc {
			rankDir = "DESC"
		}
		// Order accepts clause.OrderBy, not a bare clause.Expr.
		q = q.Order(clause.OrderBy{Expression: clause.Expr{
			SQL: "CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END " + rankDir,
		}})
	}
	q = q.Order("created_at " + dir).Order("id " + dir)

	var out []domain.TakedownRequest
	if err := q.Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ErrInvalidSort is returned for an unknown sort field.
var ErrInvalidSort = errors.New("invalid sort field")

// ValidateSort checks a sort field accepted by ListTakedownRequests.
func ValidateSort(sortBy string) error {
	switch sortBy {
	case "", "created_at", "priority":
		return nil
	}
	return ErrInvalidSort
}
