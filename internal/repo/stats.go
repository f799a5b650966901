// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate query behind the
// takedown queue summary shown alongside list responses.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/review-takedown-backend/internal/domain"
)

// TakedownSummary aggregates the whole queue, independent of list filters.
type TakedownSummary struct {
	Open                   int64   `json:"open"`
	Accepted               int64   `json:"accepted"`
	Rejected               int64   `json:"rejected"`
	AvgResolutionTimeHours float64 `json:"avg_resolution_time_hours"`
}

// TakedownStats counts requests per status and averages the time from
// creation to resolution over resolved requests. When nothing is resolved
// the average is 0.
func TakedownStats(ctx context.Context, db *gorm.DB) (TakedownSummary, error) {
	var sum TakedownSummary

	var rows []struct {
		Status string
		N      int64
	}
	if err := db.WithContext(ctx).
		Model(&domain.TakedownRequest{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return sum, err
	}
	for _, r := range rows {
		switch r.Status {
		case domain.StatusOpen:
			sum.Open = r.N
		case domain.StatusAccepted:
			sum.Accepted = r.N
		case domain.StatusRejected:
			sum.Rejected = r.N
		}
	}
	if sum.Accepted+sum.Rejected == 0 {
		return sum, nil
	}

	// Average in Go: date arithmetic differs between SQLite and Postgres, and
	// SQLite returns aggregated timestamps as TEXT.
	var spans []struct {
		CreatedAt  time.Time
		ResolvedAt *time.Time
	}
	if err := db.WithContext(ctx).
		Model(&domain.TakedownRequest{}).
		Select("created_at, resolved_at").
		Where("status <> ? AND resolved_at IS NOT NULL", domain.StatusOpen).
		Scan(&spans).Error; err != nil {
		return sum, err
	}
	var total time.Duration
	var n int
	for _, s := range spans {
		if s.ResolvedAt == nil {
			continue
		}
		total += s.ResolvedAt.Sub(s.CreatedAt)
		n++
	}
	if n > 0 {
		sum.AvgResolutionTimeHours = total.Hours() / float64(n)
	}
	return sum, nil
}
