package repo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/tbourn/review-takedown-backend/internal/domain"
)

func TestTakedownStats_Empty(t *testing.T) {
	db := newRepoDB(t)
	sum, err := TakedownStats(context.Background(), db)
	if err != nil {
		t.Fatalf("TakedownStats: %v", err)
	}
	if sum != (TakedownSummary{}) {
		t.Fatalf("expected zero summary, got %+v", sum)
	}
}

func TestTakedownStats_CountsAndAverage(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	r := seedReview(t, db, "v1")

	seedTakedown(t, db, r.ID, "v1", domain.PriorityLow)
	a := seedTakedown(t, db, seedReview(t, db, "v1").ID, "v1", domain.PriorityHigh)
	b := seedTakedown(t, db, seedReview(t, db, "v1").ID, "v1", domain.PriorityMedium)

	resolve := func(tr *domain.TakedownRequest, decision string, after time.Duration) {
		resolvedAt := tr.CreatedAt.Add(after)
		by := "admin"
		reason := "resolved"
		tr.Status = domain.StatusForDecision(decision)
		tr.Decision = &decision
		tr.ResolutionReason = &reason
		tr.ResolvedAt = &resolvedAt
		tr.ResolvedBy = &by
		tr.UpdatedAt = resolvedAt
		if err := ResolveTakedownRequest(ctx, db, tr, tr.Version); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	resolve(a, domain.DecisionReject, 2*time.Hour)
	resolve(b, domain.DecisionReject, 4*time.Hour)

	sum, err := TakedownStats(ctx, db)
	if err != nil {
		t.Fatalf("TakedownStats: %v", err)
	}
	if sum.Open != 1 || sum.Rejected != 2 || sum.Accepted != 0 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if math.Abs(sum.AvgResolutionTimeHours-3) > 0.01 {
		t.Fatalf("expected avg 3h, got %v", sum.AvgResolutionTimeHours)
	}
}
