// Package services – idempotency ledger
//
// The ledger binds a client-supplied key to one (operation, resource) pair and
// the outcome it produced. A lookup either misses, replays a stored outcome,
// or reports that the key belongs to someone else. Records are written pending
// and replayed only once finalized. Expired rows are ignored on read, replaced
// on write and purged by the janitor.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/review-takedown-backend/internal/domain"
	"github.com/tbourn/review-takedown-backend/internal/repo"
)

// OpResolveTakedown is the ledger operation name for Resolve.
const OpResolveTakedown = "resolve_takedown"

// errKeyTaken reports that a live record for the key appeared between the
// pre-check and the insert.
var errKeyTaken = errors.New("idempotency key taken")

// Ledger is the GORM-backed idempotency ledger.
type Ledger struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time

	// PendingWait bounds how long Await waits for a pending record.
	PendingWait time.Duration
	// PollInterval is the delay between Await re-reads.
	PollInterval time.Duration
}

// NewLedger returns a ledger with the given retention window.
func NewLedger(db *gorm.DB, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Ledger{
		DB:           db,
		TTL:          ttl,
		Now:          func() time.Time { return time.Now().UTC() },
		PendingWait:  2 * time.Second,
		PollInterval: 25 * time.Millisecond,
	}
}

// Lookup returns the live record for key, nil on a miss, or
// ErrIdempotencyConflict when the key is bound to another operation or
// resource.
func (l *Ledger) Lookup(ctx context.Context, key, operation, resourceID string) (*domain.Idempotency, error) {
	rec, err := repo.GetIdempotency(ctx, l.DB, key, l.Now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !rec.Matches(operation, resourceID) {
		return nil, ErrIdempotencyConflict
	}
	return rec, nil
}

// Await is Lookup for replays: a pending record is re-read until it is
// finalized or PendingWait passes, which yields ErrIdempotencyInProgress.
func (l *Ledger) Await(ctx context.Context, key, operation, resourceID string) (*domain.Idempotency, error) {
	poll := l.PollInterval
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}
	deadline := time.Now().Add(l.PendingWait)
	for {
		rec, err := l.Lookup(ctx, key, operation, resourceID)
		if err != nil || rec == nil || rec.Finalized {
			return rec, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrIdempotencyInProgress
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}

// Put records an outcome through tx, so the record shares the fate of the
// change it describes. It returns errKeyTaken if a live record already exists.
func (l *Ledger) Put(ctx context.Context, tx *gorm.DB, rec *domain.Idempotency) error {
	err := repo.CreateIdempotency(ctx, tx, rec, l.TTL)
	if errors.Is(err, repo.ErrDuplicate) {
		return errKeyTaken
	}
	return err
}

// Finalize stores the complete payload for key and makes it replayable.
func (l *Ledger) Finalize(ctx context.Context, key string, payload []byte) error {
	return repo.FinalizeIdempotency(ctx, l.DB, key, string(payload))
}

// Purge deletes expired records.
func (l *Ledger) Purge(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, l.DB, l.Now())
}

// RunJanitor purges expired records every interval until ctx is done.
func (l *Ledger) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := l.Purge(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Msg("idempotency purge failed")
				}
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired idempotency keys removed")
			}
		}
	}
}
