// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them, so a code
// is never renamed once published. Every error response carries an HTTP
// status and one of these codes (see fail in response.go).
//
// Example response:
//
//	{
//	  "success": false,
//	  "error": {
//	    "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	    "code": "already_resolved",
//	    "message": "takedown request already resolved",
//	    "details": {"current_status": "accepted", "resolved_by": "admin-1", ...}
//	  }
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Takedown workflow:
	ErrCodeValidation            = "validation_error"
	ErrCodeRequestNotFound       = "request_not_found"
	ErrCodeReviewNotFound        = "review_not_found"
	ErrCodeAlreadyResolved       = "already_resolved"
	ErrCodeIdempotencyConflict   = "idempotency_conflict"
	ErrCodeIdempotencyInProgress = "idempotency_in_progress"
	ErrCodeConcurrencyConflict   = "concurrency_conflict"
	ErrCodeDuplicateOpenRequest  = "duplicate_open_request"
	ErrCodeResolutionFailed      = "resolution_failed"
	ErrCodeSubmitFailed          = "submit_failed"
	ErrCodeListFailed            = "list_failed"
	ErrCodeMissingIdempotencyKey = "missing_idempotency_key"
	ErrCodeBadIdempotencyKey     = "bad_idempotency_key"
)
