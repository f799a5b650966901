// Package services – TakedownService
//
// This file implements the resolution workflow for vendor takedown requests:
// an admin accepts (hiding or removing the review) or rejects an open
// request. Resolution is exactly-once per request and replay-safe per
// idempotency key.
//
// Ordering of a successful resolve:
//
//	validate → ledger pre-check → [tx: locked read → state guard →
//	versioned write → review update → moderation event → audit → ledger put]
//	→ notification enqueue → ledger finalize
//
// The transaction is the rollback boundary: a failed audit append undoes the
// transition. Notifications sit outside it and are reported, never fatal.
// Replays wait for the finalized outcome; until then the key is in progress.
//
// Observability: public methods are OpenTelemetry-instrumented and resolve
// outcomes are counted in takedown_resolutions_total.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/review-takedown-backend/internal/cache"
	"github.com/tbourn/review-takedown-backend/internal/domain"
	"github.com/tbourn/review-takedown-backend/internal/notify"
	"github.com/tbourn/review-takedown-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Notifier accepts notifications for asynchronous delivery. Enqueue reports
// only whether the message was accepted.
type Notifier interface {
	Enqueue(m notify.Message) error
}

// TakedownService owns the takedown request lifecycle.
type TakedownService struct {
	DB       *gorm.DB
	Ledger   *Ledger
	Audit    AuditSink
	Notifier Notifier
	Summary  cache.SummaryCache

	// MaxRetries bounds attempts when the version guard loses a race.
	MaxRetries int
	Log        *zerolog.Logger
	Now        func() time.Time
}

// NewTakedownService wires a service with default retry budget and clock.
func NewTakedownService(db *gorm.DB, ledger *Ledger, audit AuditSink, notifier Notifier, summary cache.SummaryCache) *TakedownService {
	if audit == nil {
		audit = DBAuditSink{}
	}
	return &TakedownService{
		DB:         db,
		Ledger:     ledger,
		Audit:      audit,
		Notifier:   notifier,
		Summary:    summary,
		MaxRetries: 3,
	}
}

// ResolveCommand is one admin decision on one request.
type ResolveCommand struct {
	RequestID      string
	ActorID        string
	Decision       string
	Action         *string
	Reason         string
	AdminNotes     *string
	NotifyVendor   bool
	NotifyReviewer bool
	IdempotencyKey string
	CorrelationID  string
}

// ResolveResult carries the serialized outcome. Payload is the exact bytes
// stored in the ledger, so first responses and replays are identical.
// Outcome is nil on replays.
type ResolveResult struct {
	Outcome  *ResolveOutcome
	Payload  json.RawMessage
	Replayed bool
}

// ResolveOutcome is the response body of a successful resolve.
type ResolveOutcome struct {
	Request           ResolvedRequest    `json:"request"`
	Review            ReviewState        `json:"review"`
	NotificationsSent NotificationStatus `json:"notifications_sent"`
}

// ResolvedRequest is the post-transition request snapshot.
type ResolvedRequest struct {
	ID            string     `json:"id"`
	RequestNumber string     `json:"request_number"`
	Status        string     `json:"status"`
	ResolvedAt    time.Time  `json:"resolved_at"`
	ResolvedBy    ActorRef   `json:"resolved_by"`
	Resolution    Resolution `json:"resolution"`
}

// ActorRef identifies an admin.
type ActorRef struct {
	ID string `json:"id"`
}

// Resolution is the decision block of a resolved request.
type Resolution struct {
	Decision          string  `json:"decision"`
	ActionTaken       *string `json:"action_taken"`
	Reason            string  `json:"reason"`
	AdminNotes        *string `json:"admin_notes"`
	ReviewStatusAfter string  `json:"review_status_after"`
	VendorNotified    bool    `json:"vendor_notified"`
	ReviewerNotified  bool    `json:"reviewer_notified"`
}

// ReviewState is the review after the action was applied.
type ReviewState struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// NotificationStatus reports per recipient and channel whether the
// notification was accepted by the dispatcher.
type NotificationStatus struct {
	Vendor   ChannelStatus `json:"vendor"`
	Reviewer ChannelStatus `json:"reviewer"`
}

// ChannelStatus is the enqueue result per channel.
type ChannelStatus struct {
	Email bool `json:"email"`
	InApp bool `json:"in_app"`
}

// Resolve applies cmd to its request. See the package comment for ordering.
//
// Errors: *ValidationError, ErrIdempotencyConflict, ErrIdempotencyInProgress,
// ErrTakedownNotFound, *AlreadyResolvedError, ErrConcurrencyConflict,
// ErrAuditWriteFailed, or a database error.
func (s *TakedownService) Resolve(ctx context.Context, cmd ResolveCommand) (*ResolveResult, error) {
	tr := otel.Tracer("services/TakedownService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.String("takedown.id", cmd.RequestID),
			attribute.String("actor.id", cmd.ActorID),
			attribute.String("decision", cmd.Decision),
		),
	)
	defer span.End()

	res, err := s.resolve(ctx, cmd)
	resolutionsTotal.WithLabelValues(decisionLabel(cmd.Decision), outcomeLabel(res, err)).Inc()
	if err != nil {
		span.RecordError(err)
	} else {
		span.SetAttributes(attribute.Bool("replayed", res.Replayed))
	}
	return res, err
}

func (s *TakedownService) resolve(ctx context.Context, cmd ResolveCommand) (*ResolveResult, error) {
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key == "" {
		return nil, invalid("Idempotency-Key", "header is required")
	}
	if err := validateResolve(&cmd); err != nil {
		return nil, err
	}

	if res, err := s.replay(ctx, key, cmd.RequestID); res != nil || err != nil {
		return res, err
	}

	var (
		out *ResolveOutcome
		t   *domain.TakedownRequest
		rv  *domain.Review
	)
	err := s.withRetries(func() error {
		var err error
		out, t, rv, err = s.transition(ctx, key, cmd)
		return err
	})
	if err != nil {
		var already *AlreadyResolvedError
		if errors.As(err, &already) || errors.Is(err, errKeyTaken) {
			// A concurrent call carrying the same key may have won; if so,
			// answer with its outcome.
			if res, rerr := s.replay(ctx, key, cmd.RequestID); res != nil || rerr != nil {
				return res, rerr
			}
			if errors.Is(err, errKeyTaken) {
				return nil, ErrIdempotencyConflict
			}
		}
		return nil, err
	}

	// Committed. The rest must finish even if the caller went away.
	ctx = context.WithoutCancel(ctx)

	out.NotificationsSent = s.dispatch(t, rv, cmd)
	out.Request.Resolution.VendorNotified = out.NotificationsSent.Vendor.Email || out.NotificationsSent.Vendor.InApp
	out.Request.Resolution.ReviewerNotified = out.NotificationsSent.Reviewer.Email || out.NotificationsSent.Reviewer.InApp

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	if err := s.finalize(ctx, key, payload); err != nil {
		s.log().Error().Err(err).
			Str("takedown_id", t.ID).
			Msg("idempotency record left pending; replays of this key answer in progress until it expires")
	}
	s.invalidateSummary(ctx)

	s.log().Info().
		Str("takedown_id", t.ID).
		Str("request_number", t.RequestNumber).
		Str("decision", cmd.Decision).
		Str("actor_id", cmd.ActorID).
		Str("review_status", rv.Status).
		Msg("takedown request resolved")

	return &ResolveResult{Outcome: out, Payload: payload}, nil
}

// finalize retries Ledger.Finalize a few times with a short backoff.
func (s *TakedownService) finalize(ctx context.Context, key string, payload []byte) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if err = s.Ledger.Finalize(ctx, key, payload); err == nil {
			return nil
		}
		if attempt < 3 {
			time.Sleep(time.Duration(attempt) * 20 * time.Millisecond)
		}
	}
	return err
}

// replay returns the finalized outcome for key, nil on a miss. A record still
// pending yields ErrIdempotencyInProgress once the ledger stops waiting.
func (s *TakedownService) replay(ctx context.Context, key, requestID string) (*ResolveResult, error) {
	rec, err := s.Ledger.Await(ctx, key, OpResolveTakedown, requestID)
	if err != nil || rec == nil {
		return nil, err
	}
	idempotencyReplays.Inc()
	return &ResolveResult{Payload: json.RawMessage(rec.Payload), Replayed: true}, nil
}

// withRetries re-runs fn while it loses the version guard.
func (s *TakedownService) withRetries(fn func() error) error {
	attempts := s.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		err := fn()
		if !errors.Is(err, repo.ErrStaleVersion) {
			return err
		}
	}
	return ErrConcurrencyConflict
}

// transition performs the read-validate-write cycle in one transaction.
func (s *TakedownService) transition(ctx context.Context, key string, cmd ResolveCommand) (*ResolveOutcome, *domain.TakedownRequest, *domain.Review, error) {
	var (
		out *ResolveOutcome
		t   *domain.TakedownRequest
		rv  *domain.Review
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, err = repo.LockTakedownRequest(ctx, tx, cmd.RequestID)
		if err != nil {
			if isNotFound(err) {
				return ErrTakedownNotFound
			}
			return err
		}
		if t.IsTerminal() {
			return alreadyResolved(t)
		}
		rv, err = repo.GetReview(ctx, tx, t.ReviewID)
		if err != nil {
			if isNotFound(err) {
				return ErrReviewNotFound
			}
			return err
		}

		now := s.now()
		statusBefore, reviewBefore, expected := t.Status, rv.Status, t.Version

		decision, reason, actor := cmd.Decision, cmd.Reason, cmd.ActorID
		t.Status = domain.StatusForDecision(decision)
		t.Decision = &decision
		t.ActionTaken = cmd.Action
		t.ResolutionReason = &reason
		t.AdminNotes = cmd.AdminNotes
		t.ResolvedAt = &now
		t.ResolvedBy = &actor
		t.UpdatedAt = now
		if err := t.CheckInvariants(); err != nil {
			return err
		}
		if err := repo.ResolveTakedownRequest(ctx, tx, t, expected); err != nil {
			return err
		}

		if after := domain.ReviewStatusAfter(cmd.Action, rv.Status); after != rv.Status {
			if err := repo.SetReviewStatus(ctx, tx, rv.ID, after, now); err != nil {
				return err
			}
			rv.Status = after
		}
		if cmd.Action != nil {
			if err := repo.AppendModerationEvent(ctx, tx, &domain.ReviewModerationEvent{
				ReviewID:          rv.ID,
				TakedownRequestID: t.ID,
				Action:            *cmd.Action,
				Reason:            fmt.Sprintf("Takedown request %s accepted", t.RequestNumber),
				AdminID:           actor,
				CreatedAt:         now,
			}); err != nil {
				return err
			}
		}

		changes, err := json.Marshal(map[string]any{
			"decision":        decision,
			"action":          cmd.Action,
			"reason":          reason,
			"admin_notes":     cmd.AdminNotes,
			"notify_vendor":   cmd.NotifyVendor,
			"notify_reviewer": cmd.NotifyReviewer,
			"request_number":  t.RequestNumber,
			"idempotency_key": key,
		})
		if err != nil {
			return err
		}
		if err := s.Audit.Append(ctx, tx, &domain.AuditEntry{
			ActorID:            actor,
			Action:             domain.AuditActionResolveTakedown,
			ResourceType:       domain.AuditResourceTakedown,
			ResourceID:         t.ID,
			StatusBefore:       statusBefore,
			StatusAfter:        t.Status,
			ReviewStatusBefore: reviewBefore,
			ReviewStatusAfter:  rv.Status,
			Changes:            datatypes.JSON(changes),
			CorrelationID:      cmd.CorrelationID,
			CreatedAt:          now,
		}); err != nil {
			s.log().Error().Err(err).Str("takedown_id", t.ID).Msg("audit append failed, rolling back")
			return fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
		}

		// Pending until Finalize stores the outcome with notification results.
		out = buildOutcome(t, rv, cmd)
		payload, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return s.Ledger.Put(ctx, tx, &domain.Idempotency{
			Key:        key,
			Operation:  OpResolveTakedown,
			ResourceID: t.ID,
			ActorID:    actor,
			Status:     http.StatusOK,
			Payload:    string(payload),
		})
	})
	return out, t, rv, err
}

func buildOutcome(t *domain.TakedownRequest, rv *domain.Review, cmd ResolveCommand) *ResolveOutcome {
	return &ResolveOutcome{
		Request: ResolvedRequest{
			ID:            t.ID,
			RequestNumber: t.RequestNumber,
			Status:        t.Status,
			ResolvedAt:    *t.ResolvedAt,
			ResolvedBy:    ActorRef{ID: *t.ResolvedBy},
			Resolution: Resolution{
				Decision:          *t.Decision,
				ActionTaken:       t.ActionTaken,
				Reason:            *t.ResolutionReason,
				AdminNotes:        t.AdminNotes,
				ReviewStatusAfter: rv.Status,
			},
		},
		Review: ReviewState{ID: rv.ID, Status: rv.Status},
	}
}

// dispatch enqueues the notifications cmd asks for. Failures are logged and
// reported as false.
func (s *TakedownService) dispatch(t *domain.TakedownRequest, rv *domain.Review, cmd ResolveCommand) NotificationStatus {
	var st NotificationStatus
	if s.Notifier == nil {
		return st
	}
	base := notify.Message{
		Template:          domain.TemplateFor(cmd.Decision, cmd.Action),
		TakedownRequestID: t.ID,
		RequestNumber:     t.RequestNumber,
		Decision:          cmd.Decision,
		Reason:            cmd.Reason,
	}
	if cmd.Action != nil {
		base.Action = *cmd.Action
	}
	send := func(role, recipientID, channel string) bool {
		m := base
		m.RecipientRole, m.RecipientID, m.Channel = role, recipientID, channel
		if err := s.Notifier.Enqueue(m); err != nil {
			s.log().Warn().Err(err).
				Str("takedown_id", t.ID).
				Str("recipient", role).
				Str("channel", channel).
				Msg("notification enqueue failed")
			return false
		}
		return true
	}
	if cmd.NotifyVendor {
		st.Vendor.Email = send(domain.RecipientVendor, t.VendorID, domain.ChannelEmail)
		st.Vendor.InApp = send(domain.RecipientVendor, t.VendorID, domain.ChannelInApp)
	}
	if cmd.NotifyReviewer {
		st.Reviewer.Email = send(domain.RecipientReviewer, rv.ReviewerID, domain.ChannelEmail)
		st.Reviewer.InApp = send(domain.RecipientReviewer, rv.ReviewerID, domain.ChannelInApp)
	}
	return st
}

func alreadyResolved(t *domain.TakedownRequest) *AlreadyResolvedError {
	e := &AlreadyResolvedError{Status: t.Status}
	if t.Decision != nil {
		e.Decision = *t.Decision
	}
	if t.ResolvedAt != nil {
		e.ResolvedAt = *t.ResolvedAt
	}
	if t.ResolvedBy != nil {
		e.ResolvedBy = *t.ResolvedBy
	}
	return e
}

func (s *TakedownService) invalidateSummary(ctx context.Context) {
	if s.Summary != nil {
		s.Summary.Invalidate(ctx)
	}
}

func (s *TakedownService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *TakedownService) log() *zerolog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return &log.Logger
}

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func decisionLabel(d string) string {
	switch d {
	case domain.DecisionAccept, domain.DecisionReject:
		return d
	}
	return "invalid"
}

func outcomeLabel(res *ResolveResult, err error) string {
	switch {
	case err == nil && res.Replayed:
		return "replayed"
	case err == nil:
		return "resolved"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, ErrTakedownNotFound):
		return "not_found"
	case errors.Is(err, ErrIdempotencyConflict), errors.Is(err, ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, ErrIdempotencyInProgress):
		return "in_progress"
	}
	return "error"
}
