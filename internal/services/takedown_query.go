// Package services – TakedownService reads and submissions
//
// Vendor submission and the admin list/detail views. Submission shares the
// audit sink with Resolve; the list summary is served from the summary cache.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/review-takedown-backend/internal/domain"
	"github.com/tbourn/review-takedown-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SubmitCommand is a vendor's request to take one review down.
type SubmitCommand struct {
	VendorID          string
	ReviewID          string
	ReasonCode        string
	ReasonDescription string
	VendorNotes       *string
	Evidence          []domain.Evidence
	Priority          string
	CorrelationID     string
}

// Submit opens a takedown request against a review the vendor owns.
// A review can have at most one open request (ErrDuplicateOpenRequest).
func (s *TakedownService) Submit(ctx context.Context, cmd SubmitCommand) (*domain.TakedownRequest, error) {
	tr := otel.Tracer("services/TakedownService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("review.id", cmd.ReviewID),
			attribute.String("vendor.id", cmd.VendorID),
		),
	)
	defer span.End()

	if err := validateSubmit(&cmd); err != nil {
		return nil, err
	}
	evidence, err := json.Marshal(cmd.Evidence)
	if err != nil {
		return nil, err
	}

	var created *domain.TakedownRequest
	// Two submitters can draw the same sequence number; the loser retries.
	for attempt := 0; ; attempt++ {
		created, err = s.submitOnce(ctx, cmd, evidence)
		if !errors.Is(err, repo.ErrDuplicate) || attempt+1 >= max(s.MaxRetries, 1) {
			break
		}
	}
	if errors.Is(err, repo.ErrDuplicate) {
		// The insert lost either the seq race or the open-per-review index.
		if open, herr := repo.HasOpenTakedownForReview(ctx, s.DB, cmd.ReviewID); herr == nil && open {
			return nil, ErrDuplicateOpenRequest
		}
		return nil, ErrConcurrencyConflict
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.invalidateSummary(context.WithoutCancel(ctx))
	s.log().Info().
		Str("takedown_id", created.ID).
		Str("request_number", created.RequestNumber).
		Str("review_id", created.ReviewID).
		Str("vendor_id", created.VendorID).
		Msg("takedown request submitted")
	return created, nil
}

func (s *TakedownService) submitOnce(ctx context.Context, cmd SubmitCommand, evidence []byte) (*domain.TakedownRequest, error) {
	var t *domain.TakedownRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rv, err := repo.GetReview(ctx, tx, cmd.ReviewID)
		if err != nil {
			if isNotFound(err) {
				return ErrReviewNotFound
			}
			return err
		}
		// Vendors may only challenge reviews about themselves.
		if rv.VendorID != cmd.VendorID {
			return ErrReviewNotFound
		}
		open, err := repo.HasOpenTakedownForReview(ctx, tx, rv.ID)
		if err != nil {
			return err
		}
		if open {
			return ErrDuplicateOpenRequest
		}

		now := s.now()
		t = &domain.TakedownRequest{
			ReviewID:          rv.ID,
			VendorID:          cmd.VendorID,
			ReasonCode:        cmd.ReasonCode,
			ReasonDescription: cmd.ReasonDescription,
			VendorNotes:       cmd.VendorNotes,
			Evidence:          datatypes.JSON(evidence),
			Priority:          cmd.Priority,
			CreatedAt:         now,
		}
		if err := repo.CreateTakedownRequest(ctx, tx, t); err != nil {
			return err
		}
		if err := repo.MarkTakedownRequested(ctx, tx, rv.ID, now); err != nil {
			return err
		}

		changes, err := json.Marshal(map[string]any{
			"reason_code":    t.ReasonCode,
			"priority":       t.Priority,
			"request_number": t.RequestNumber,
			"review_id":      rv.ID,
		})
		if err != nil {
			return err
		}
		if err := s.Audit.Append(ctx, tx, &domain.AuditEntry{
			ActorID:            cmd.VendorID,
			Action:             domain.AuditActionSubmitTakedown,
			ResourceType:       domain.AuditResourceTakedown,
			ResourceID:         t.ID,
			StatusBefore:       "",
			StatusAfter:        domain.StatusOpen,
			ReviewStatusBefore: rv.Status,
			ReviewStatusAfter:  rv.Status,
			Changes:            datatypes.JSON(changes),
			CorrelationID:      cmd.CorrelationID,
			CreatedAt:          now,
		}); err != nil {
			return fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
		}
		return nil
	})
	return t, err
}

// Get returns one request or ErrTakedownNotFound.
func (s *TakedownService) Get(ctx context.Context, id string) (*domain.TakedownRequest, error) {
	t, err := repo.GetTakedownRequest(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTakedownNotFound
		}
		return nil, err
	}
	return t, nil
}

// TakedownDetail is the admin's full view of one request.
type TakedownDetail struct {
	Request  *domain.TakedownRequest `json:"request"`
	Review   *domain.Review          `json:"review"`
	Timeline []TimelineEvent         `json:"timeline"`
}

// TimelineEvent is one dated step in a request's history.
type TimelineEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor,omitempty"`
	Details   string    `json:"details"`
}

// Timeline event names.
const (
	EventReviewPosted      = "review_posted"
	EventTakedownRequested = "takedown_requested"
	EventReviewModerated   = "review_moderated"
	EventTakedownResolved  = "takedown_resolved"
)

// Detail loads a request with its review and a chronological timeline.
func (s *TakedownService) Detail(ctx context.Context, id string) (*TakedownDetail, error) {
	tr := otel.Tracer("services/TakedownService")
	ctx, span := tr.Start(ctx, "Detail", trace.WithAttributes(attribute.String("takedown.id", id)))
	defer span.End()

	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rv, err := repo.GetReview(ctx, s.DB, t.ReviewID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	events, err := repo.ListModerationEvents(ctx, s.DB, t.ID)
	if err != nil {
		return nil, err
	}
	return &TakedownDetail{Request: t, Review: rv, Timeline: buildTimeline(t, rv, events)}, nil
}

func buildTimeline(t *domain.TakedownRequest, rv *domain.Review, events []domain.ReviewModerationEvent) []TimelineEvent {
	out := []TimelineEvent{
		{
			Event:     EventReviewPosted,
			Timestamp: rv.CreatedAt,
			Actor:     rv.ReviewerID,
			Details:   fmt.Sprintf("Review posted with rating %d", rv.Rating),
		},
		{
			Event:     EventTakedownRequested,
			Timestamp: t.CreatedAt,
			Actor:     t.VendorID,
			Details:   fmt.Sprintf("Takedown %s requested: %s", t.RequestNumber, t.ReasonCode),
		},
	}
	for _, ev := range events {
		out = append(out, TimelineEvent{
			Event:     EventReviewModerated,
			Timestamp: ev.CreatedAt,
			Actor:     ev.AdminID,
			Details:   fmt.Sprintf("Review %s: %s", ev.Action, ev.Reason),
		})
	}
	if t.IsTerminal() && t.ResolvedAt != nil {
		ev := TimelineEvent{
			Event:     EventTakedownResolved,
			Timestamp: *t.ResolvedAt,
			Details:   "Takedown " + t.Status,
		}
		if t.ResolvedBy != nil {
			ev.Actor = *t.ResolvedBy
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// ListPage returns one page of requests matching f plus the queue summary.
func (s *TakedownService) ListPage(ctx context.Context, f repo.TakedownFilter, page, pageSize int) ([]domain.TakedownRequest, int64, repo.TakedownSummary, error) {
	tr := otel.Tracer("services/TakedownService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("filter.status", f.Status),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	if err := repo.ValidateSort(f.SortBy); err != nil {
		return nil, 0, repo.TakedownSummary{}, invalid("sort_by", "must be one of: created_at, priority")
	}

	items, total, err := repo.ListTakedownRequests(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, repo.TakedownSummary{}, err
	}
	sum, err := s.summary(ctx)
	if err != nil {
		return nil, 0, repo.TakedownSummary{}, err
	}
	return items, total, sum, nil
}

func (s *TakedownService) summary(ctx context.Context) (repo.TakedownSummary, error) {
	if s.Summary != nil {
		if sum, ok := s.Summary.Get(ctx); ok {
			return sum, nil
		}
	}
	sum, err := repo.TakedownStats(ctx, s.DB)
	if err != nil {
		return sum, err
	}
	if s.Summary != nil {
		s.Summary.Set(ctx, sum)
	}
	return sum, nil
}
