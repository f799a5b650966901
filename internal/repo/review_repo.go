package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/review-takedown-backend/internal/domain"
)

// CreateReview inserts a review, defaulting ID and status.
func CreateReview(ctx context.Context, db *gorm.DB, r *domain.Review) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = domain.ReviewStatusPublished
	}
	return db.WithContext(ctx).Create(r).Error
}

// GetReview fetches a review by ID, or ErrNotFound.
func GetReview(ctx context.Context, db *gorm.DB, id string) (*domain.Review, error) {
	var r domain.Review
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// SetReviewStatus moves a review to status. RemovedAt is stamped when the
// review is removed.
func SetReviewStatus(ctx context.Context, db *gorm.DB, id, status string, now time.Time) error {
	updates := map[string]any{"status": status, "updated_at": now}
	if status == domain.ReviewStatusRemoved {
		updates["removed_at"] = now
	}
	res := db.WithContext(ctx).Model(&domain.Review{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkTakedownRequested flags a review as challenged and bumps its counter.
func MarkTakedownRequested(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).Model(&domain.Review{}).Where("id = ?", id).Updates(map[string]any{
		"has_takedown_request":   true,
		"takedown_request_count": gorm.Expr("takedown_request_count + 1"),
		"updated_at":             now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendModerationEvent records one moderation action on a review.
func AppendModerationEvent(ctx context.Context, db *gorm.DB, ev *domain.ReviewModerationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Omit("Review").Create(ev).Error
}

// ListModerationEvents returns the events recorded for a takedown request,
// oldest first.
func ListModerationEvents(ctx context.Context, db *gorm.DB, takedownID string) ([]domain.ReviewModerationEvent, error) {
	var out []domain.ReviewModerationEvent
	err := db.WithContext(ctx).
		Where("takedown_request_id = ?", takedownID).
		Order("created_at ASC").Order("id ASC").
		Find(&out).Error
	return out, err
}
