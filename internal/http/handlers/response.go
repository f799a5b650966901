// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response envelopes shared by every endpoint. Success
// bodies are {"success": true, "data": ...}; failures are
// {"success": false, "error": ErrorResponse}.
//
// fail centralizes error logging: 5xx responses are logged with the
// request-scoped logger so they can be correlated through X-Request-ID.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/review-takedown-backend/internal/http/middleware"
)

// ErrorResponse is the error object inside ErrorEnvelope.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"request_not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"takedown request not found"`
	// Extra context, e.g. the offending field or the current state
	Details map[string]any `json:"details,omitempty" swaggertype:"object"`
}

// ErrorEnvelope is the body of every error response.
type ErrorEnvelope struct {
	Success bool          `json:"success" example:"false"`
	Error   ErrorResponse `json:"error"`
}

// Envelope is the body of a success response.
type Envelope struct {
	Success bool `json:"success" example:"true"`
	Data    any  `json:"data"`
}

// RawEnvelope wraps pre-serialized data; the bytes are emitted unchanged.
type RawEnvelope struct {
	Success bool            `json:"success" example:"true"`
	Data    json.RawMessage `json:"data" swaggertype:"object"`
}

// fail aborts the request with an error envelope. Server errors are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, code, msg, nil)
}

func failWith(c *gin.Context, status int, code, msg string, details map[string]any) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Details:   details,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: resp})
}

// Fail is the exported variant of fail for the router (404/405 handlers).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes data inside a success envelope.
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}
