// Package services defines the business logic for takedown moderation.
// This file centralizes the service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTakedownNotFound indicates that the requested takedown request does
	// not exist.
	ErrTakedownNotFound = errors.New("takedown request not found")

	// ErrReviewNotFound indicates that the referenced review does not exist.
	ErrReviewNotFound = errors.New("review not found")

	// ErrValidation is the sentinel behind every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyResolved is the sentinel behind *AlreadyResolvedError.
	ErrAlreadyResolved = errors.New("takedown request already resolved")

	// ErrIdempotencyConflict is returned when an idempotency key is reused
	// for a different operation or resource.
	ErrIdempotencyConflict = errors.New("idempotency key reused for a different request")

	// ErrIdempotencyInProgress is returned when the first call carrying the
	// key has committed but its outcome is not final yet. Retry later.
	ErrIdempotencyInProgress = errors.New("request with this idempotency key is still in progress")

	// ErrConcurrencyConflict is returned when the version guard kept losing
	// to concurrent writers until the retry budget ran out.
	ErrConcurrencyConflict = errors.New("concurrent modification, retry later")

	// ErrAuditWriteFailed means the audit entry could not be recorded; the
	// state change it described was rolled back.
	ErrAuditWriteFailed = errors.New("audit write failed")

	// ErrDuplicateOpenRequest is returned when a review already has an open
	// takedown request.
	ErrDuplicateOpenRequest = errors.New("an open takedown request already exists for this review")
)

// ValidationError reports malformed input. Field names the offending input
// as the client sent it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AlreadyResolvedError carries the terminal state a resolve attempt ran into,
// so the caller can tell a lost race from a client bug.
type AlreadyResolvedError struct {
	Status     string
	Decision   string
	ResolvedAt time.Time
	ResolvedBy string
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("takedown request already %s by %s at %s",
		e.Status, e.ResolvedBy, e.ResolvedAt.UTC().Format(time.RFC3339))
}

// Unwrap lets errors.Is(err, ErrAlreadyResolved) match.
func (e *AlreadyResolvedError) Unwrap() error { return ErrAlreadyResolved }
