// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the hardening middleware: SecurityHeaders for response
// headers suited to a JSON API behind a reverse proxy, and RequireRole, the
// coarse role gate in front of the admin and vendor route groups.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS   bool          // only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // default 180 days
	NoStore      bool          // Cache-Control: no-store (moderation data)
	EnablePolicy bool          // Permissions-Policy and friends
}

// SecurityHeaders attaches baseline hardening headers. HSTS is emitted only
// for HTTPS requests, and X-Request-ID is added to the exposed headers.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if rid := h.Get(requestIDHeader); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			if cur == "" {
				h.Set(hdr, requestIDHeader)
			} else if !strings.Contains(cur, requestIDHeader) {
				h.Set(hdr, cur+", "+requestIDHeader)
			}
		}

		c.Next()
	}
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// HeaderUserRole carries the caller role when no upstream auth middleware
// has set "userRole" in the Gin context.
const HeaderUserRole = "X-User-Role"

// RequireRole rejects callers whose role is not in roles with 403 forbidden.
// A caller without any role is let through as the demo identity; real
// deployments put authentication in front and always set "userRole".
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[strings.ToLower(r)] = struct{}{}
	}
	return func(c *gin.Context) {
		role := ""
		if v, ok := c.Get("userRole"); ok {
			role, _ = v.(string)
		}
		if role == "" {
			role = c.GetHeader(HeaderUserRole)
		}
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			c.Next()
			return
		}
		if _, ok := allowed[role]; !ok {
			abortError(c, http.StatusForbidden, "forbidden", "permission denied")
			return
		}
		c.Next()
	}
}
