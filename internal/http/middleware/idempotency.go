// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on unsafe routes and stashes
// the key for handlers. When a lookup reports that the key already has a
// stored outcome for this resource, the request is marked as a replay so the
// rate limiter lets it through: a client retrying after a timeout must get its
// original answer back, not a 429.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: a stored outcome exists
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting
)

// GetIdempotencyKey returns the key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a stored outcome for the key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// Required rejects requests without the header (400 missing_idempotency_key).
	Required bool
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Param names the path parameter identifying the resource. Default "id".
	Param string
}

// IdempotencyLookup reports whether key already holds a stored outcome for
// resourceID. Lookup errors never block the request; the handler's own ledger
// check is authoritative.
type IdempotencyLookup func(ctx context.Context, key, resourceID string) (bool, error)

// IdempotencyValidator validates and stashes the Idempotency-Key header.
//
//   - header absent: 400 when Required, otherwise a no-op
//   - header malformed: 400 bad_idempotency_key
//   - lookup hit: replay and rate-bypass flags set
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}
	param := opts.Param
	if param == "" {
		param = "id"
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if opts.Required {
				abortError(c, http.StatusBadRequest, "missing_idempotency_key", "Idempotency-Key header is required")
				return
			}
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortError(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			if exists, _ := lookup(c.Request.Context(), key, c.Param(param)); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// abortError writes the API error envelope from inside middleware.
func abortError(c *gin.Context, status int, code, msg string) {
	httpRejected.WithLabelValues(code).Inc()
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       code,
			"message":    msg,
		},
	})
}
