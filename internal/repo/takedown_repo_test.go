package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/review-takedown-backend/internal/domain"
)

func TestFormatRequestNumber(t *testing.T) {
	if got := FormatRequestNumber(2025, 42); got != "TR-2025-000042" {
		t.Fatalf("got %q", got)
	}
}

func TestCreateTakedownRequest_AssignsSequence(t *testing.T) {
	db := newRepoDB(t)
	r := seedReview(t, db, "v1")

	r2 := seedReview(t, db, "v1")

	first := seedTakedown(t, db, r.ID, "v1", domain.PriorityHigh)
	second := seedTakedown(t, db, r2.ID, "v1", domain.PriorityLow)

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("unexpected seqs %d, %d", first.Seq, second.Seq)
	}
	if first.Status != domain.StatusOpen || first.Version != 1 {
		t.Fatalf("unexpected defaults: %+v", first)
	}
	if first.RequestNumber == second.RequestNumber {
		t.Fatalf("request numbers must differ")
	}
	if err := first.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestGetTakedownRequest_NotFound(t *testing.T) {
	db := newRepoDB(t)
	if _, err := GetTakedownRequest(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveTakedownRequest_VersionGuard(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	r := seedReview(t, db, "v1")
	tr := seedTakedown(t, db, r.ID, "v1", domain.PriorityMedium)

	locked, err := LockTakedownRequest(ctx, db, tr.ID)
	if err != nil {
		t.Fatalf("LockTakedownRequest: %v", err)
	}

	now := time.Now().UTC()
	decision, action, reason, by := domain.DecisionAccept, domain.ActionHide, "policy violation", "admin"
	locked.Status = domain.StatusAccepted
	locked.Decision, locked.ActionTaken, locked.ResolutionReason = &decision, &action, &reason
	locked.ResolvedAt, locked.ResolvedBy, locked.UpdatedAt = &now, &by, now

	if err := ResolveTakedownRequest(ctx, db, locked, 1); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if locked.Version != 2 {
		t.Fatalf("expected version 2, got %d", locked.Version)
	}

	// A second writer that read version 1 loses.
	if err := ResolveTakedownRequest(ctx, db, locked, 1); err != ErrStaleVersion {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
	// So does one holding the current version, since the row left open.
	if err := ResolveTakedownRequest(ctx, db, locked, 2); err != ErrStaleVersion {
		t.Fatalf("expected ErrStaleVersion on terminal row, got %v", err)
	}

	got, _ := GetTakedownRequest(ctx, db, tr.ID)
	if got.Status != domain.StatusAccepted || got.ResolvedBy == nil || *got.ResolvedBy != "admin" {
		t.Fatalf("unexpected stored row: %+v", got)
	}
	if err := got.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestHasOpenTakedownForReview(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	r := seedReview(t, db, "v1")

	if open, err := HasOpenTakedownForReview(ctx, db, r.ID); err != nil || open {
		t.Fatalf("expected none open, got %v err=%v", open, err)
	}
	seedTakedown(t, db, r.ID, "v1", domain.PriorityLow)
	if open, err := HasOpenTakedownForReview(ctx, db, r.ID); err != nil || !open {
		t.Fatalf("expected open, got %v err=%v", open, err)
	}
}

func TestCreateTakedownRequest_OneOpenPerReview(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	r := seedReview(t, db, "v1")
	first := seedTakedown(t, db, r.ID, "v1", domain.PriorityHigh)

	// Skips the service-level check, as a racing submitter would.
	dup := &domain.TakedownRequest{
		ReviewID: r.ID, VendorID: "v1", ReasonCode: "spam",
		ReasonDescription: "d", Priority: domain.PriorityLow,
	}
	if err := CreateTakedownRequest(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second open request, got %v", err)
	}

	if err := db.Model(&domain.TakedownRequest{}).Where("id = ?", first.ID).
		Update("status", domain.StatusRejected).Error; err != nil {
		t.Fatalf("close first: %v", err)
	}
	again := &domain.TakedownRequest{
		ReviewID: r.ID, VendorID: "v1", ReasonCode: "spam",
		ReasonDescription: "d", Priority: domain.PriorityLow,
	}
	if err := CreateTakedownRequest(ctx, db, again); err != nil {
		t.Fatalf("expected new open request after resolution, got %v", err)
	}
}

func TestListTakedownRequests_FiltersAndSorts(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	r := seedReview(t, db, "v1")
	r1 := seedReview(t, db, "v1")
	r2 := seedReview(t, db, "v2")

	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	mk := func(reviewID, vendor, priority string, at time.Time) *domain.TakedownRequest {
		tr := &domain.TakedownRequest{
			ReviewID: reviewID, VendorID: vendor, ReasonCode: "spam",
			ReasonDescription: "d", Priority: priority, CreatedAt: at,
		}
		if err := CreateTakedownRequest(ctx, db, tr); err != nil {
			t.Fatalf("create: %v", err)
		}
		return tr
	}
	low := mk(r.ID, "v1", domain.PriorityLow, base)
	high := mk(r1.ID, "v1", domain.PriorityHigh, base.Add(time.Hour))
	med := mk(r2.ID, "v2", domain.PriorityMedium, base.Add(2*time.Hour))

	out, total, err := ListTakedownRequests(ctx, db, TakedownFilter{Status: domain.StatusOpen, SortDesc: true}, 0, 10)
	if err != nil || total != 3 {
		t.Fatalf("list: total=%d err=%v", total, err)
	}
	if out[0].ID != med.ID || out[2].ID != low.ID {
		t.Fatalf("expected newest first")
	}

	out, _, _ = ListTakedownRequests(ctx, db, TakedownFilter{SortBy: "priority", SortDesc: true}, 0, 10)
	if out[0].ID != high.ID || out[1].ID != med.ID || out[2].ID != low.ID {
		t.Fatalf("expected high, medium, low; got %s, %s, %s", out[0].Priority, out[1].Priority, out[2].Priority)
	}

	out, _, _ = ListTakedownRequests(ctx, db, TakedownFilter{SortBy: "priority"}, 0, 10)
	if out[0].ID != low.ID || out[1].ID != med.ID || out[2].ID != high.ID {
		t.Fatalf("expected low, medium, high; got %s, %s, %s", out[0].Priority, out[1].Priority, out[2].Priority)
	}

	out, total, _ = ListTakedownRequests(ctx, db, TakedownFilter{VendorID: "v2"}, 0, 10)
	if total != 1 || out[0].ID != med.ID {
		t.Fatalf("vendor filter failed: %+v", out)
	}

	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	out, total, _ = ListTakedownRequests(ctx, db, TakedownFilter{From: &from, To: &to}, 0, 10)
	if total != 1 || out[0].ID != high.ID {
		t.Fatalf("date filter failed: total=%d", total)
	}

	out, total, _ = ListTakedownRequests(ctx, db, TakedownFilter{}, 2, 2)
	if total != 3 || len(out) != 1 {
		t.Fatalf("paging failed: total=%d len=%d", total, len(out))
	}

	out, total, _ = ListTakedownRequests(ctx, db, TakedownFilter{Status: domain.StatusAccepted}, 0, 10)
	if total != 0 || out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", out)
	}
}

func TestValidateSort(t *testing.T) {
	for _, ok := range []string{"", "created_at", "priority"} {
		if err := ValidateSort(ok); err != nil {
			t.Fatalf("%q: %v", ok, err)
		}
	}
	if err := ValidateSort("rating"); err != ErrInvalidSort {
		t.Fatalf("expected ErrInvalidSort, got %v", err)
	}
}
