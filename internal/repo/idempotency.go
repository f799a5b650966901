// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model used to replay completed operations on client retries.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/review-takedown-backend/internal/domain"
)

// GetIdempotency returns the non-expired record bound to key, whatever
// operation or resource it was recorded for, or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency inserts a record for key, first discarding an expired row
// holding the same key. It returns ErrDuplicate when a live record exists.
//
// Pass a transaction handle to make the record commit or roll back together
// with the operation it describes.
func CreateIdempotency(ctx context.Context, db *gorm.DB, rec *domain.Idempotency, ttl time.Duration) error {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.ExpiresAt = now.Add(ttl)

	if err := db.WithContext(ctx).
		Where("key = ? AND expires_at <= ?", rec.Key, now).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FinalizeIdempotency stores the final payload for a live record and marks it
// finalized. It returns ErrNotFound when no live record holds key.
func FinalizeIdempotency(ctx context.Context, db *gorm.DB, key, payload string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Idempotency{}).
		Where("key = ? AND expires_at > ?", key, now).
		Updates(map[string]any{"payload": payload, "finalized": true, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpiredIdempotency deletes records whose retention window has passed
// and returns how many were removed.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
