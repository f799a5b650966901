// Takedown HTTP handlers.
//
// Admin endpoints:
//   - GET  /admin/reviews/takedown-requests              (list, paginated)
//   - GET  /admin/reviews/takedown-requests/{id}         (detail + timeline)
//   - POST /admin/reviews/takedown-requests/{id}/resolve (accept or reject)
//
// Vendor endpoint:
//   - POST /vendor/reviews/{id}/takedown-requests        (submit)
//
// Handlers are transport-thin: they bind input, call TakedownService, and map
// service errors onto the error codes in errors.go.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/review-takedown-backend/internal/domain"
	"github.com/tbourn/review-takedown-backend/internal/http/middleware"
	"github.com/tbourn/review-takedown-backend/internal/repo"
	"github.com/tbourn/review-takedown-backend/internal/services"
	"github.com/tbourn/review-takedown-backend/internal/utils"
)

// TakedownService is the slice of services.TakedownService the handlers use.
//
// Implementations must be safe for concurrent use and honor ctx.
type TakedownService interface {
	Resolve(ctx context.Context, cmd services.ResolveCommand) (*services.ResolveResult, error)
	Submit(ctx context.Context, cmd services.SubmitCommand) (*domain.TakedownRequest, error)
	Detail(ctx context.Context, id string) (*services.TakedownDetail, error)
	ListPage(ctx context.Context, f repo.TakedownFilter, page, pageSize int) ([]domain.TakedownRequest, int64, repo.TakedownSummary, error)
}

// Handlers groups the takedown endpoints.
type Handlers struct {
	svc TakedownService
}

// New constructs Handlers bound to svc.
func New(svc TakedownService) *Handlers {
	return &Handlers{svc: svc}
}

// actorID extracts the caller identity set by upstream auth middleware,
// falling back to the X-User-ID header and finally to "demo-admin".
func actorID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-admin"
}

//
// DTOs
//

// ResolveRequest is the JSON body of the resolve endpoint.
type ResolveRequest struct {
	// accept or reject
	Decision string `json:"decision" example:"accept"`
	// hide or remove; required for accept, forbidden for reject
	Action *string `json:"action" example:"hide"`
	// 50 to 2000 characters
	Reason string `json:"reason" example:"The review describes a booking that never happened; verified against reservation records."`
	// optional, at most 5000 characters
	AdminNotes *string `json:"admin_notes"`
	// defaults to true
	NotifyVendor *bool `json:"notify_vendor"`
	// defaults to false
	NotifyReviewer *bool `json:"notify_reviewer"`
}

// SubmitRequest is the JSON body of the vendor submit endpoint.
type SubmitRequest struct {
	ReasonCode        string            `json:"reason_code" example:"fake_review"`
	ReasonDescription string            `json:"reason_description" example:"The reviewer never stayed with us."`
	VendorNotes       *string           `json:"vendor_notes"`
	Evidence          []domain.Evidence `json:"evidence"`
	// high, medium (default) or low
	Priority string `json:"priority" example:"medium"`
}

// PaginationMeta carries pagination metadata and the queue summary.
type PaginationMeta struct {
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalItems int64                `json:"total_items"`
	TotalPages int                  `json:"total_pages"`
	HasNext    bool                 `json:"has_next"`
	HasPrev    bool                 `json:"has_prev"`
	Summary    repo.TakedownSummary `json:"summary"`
}

// ListResponse is the body of the list endpoint.
type ListResponse struct {
	Success bool                     `json:"success"`
	Data    []domain.TakedownRequest `json:"data"`
	Meta    PaginationMeta           `json:"meta"`
}

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

//
// Handlers
//

// ListTakedownRequests godoc
// @ID          listTakedownRequests
// @Summary     List takedown requests (paginated)
// @Description Returns a page of takedown requests with a queue summary. Status defaults to open; pass status=all to disable the filter.
// @Tags        Takedowns
// @Produce     json
//
// @Param       X-User-ID    header  string  false "Admin ID (demo header)"  example(admin-1)
// @Param       page         query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size    query   int     false "Items per page"  minimum(1) maximum(100) default(25)
// @Param       status       query   string  false "open, accepted, rejected or all"  default(open)
// @Param       reason_code  query   string  false "Reason code filter"
// @Param       vendor_id    query   string  false "Vendor filter"
// @Param       from_date    query   string  false "Created at or after (RFC3339 or YYYY-MM-DD)"
// @Param       to_date      query   string  false "Created at or before (RFC3339 or YYYY-MM-DD)"
// @Param       sort_by      query   string  false "created_at or priority"  default(created_at)
// @Param       sort_order   query   string  false "asc or desc"             default(desc)
//
// @Success     200  {object}  handlers.ListResponse
// @Failure     400  {object}  handlers.ErrorEnvelope  "Bad query"
// @Failure     403  {object}  handlers.ErrorEnvelope  "Forbidden"
// @Failure     500  {object}  handlers.ErrorEnvelope  "Internal error"
// @Router      /admin/reviews/takedown-requests [get]
func (h *Handlers) ListTakedownRequests(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize := utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)

	f := repo.TakedownFilter{
		ReasonCode: strings.TrimSpace(c.Query("reason_code")),
		VendorID:   strings.TrimSpace(c.Query("vendor_id")),
		SortBy:     c.DefaultQuery("sort_by", "created_at"),
	}

	switch st := c.DefaultQuery("status", domain.StatusOpen); st {
	case domain.StatusOpen, domain.StatusAccepted, domain.StatusRejected:
		f.Status = st
	case "all":
	default:
		failWith(c, http.StatusBadRequest, ErrCodeValidation, "status must be one of: open, accepted, rejected, all",
			map[string]any{"field": "status"})
		return
	}

	switch c.DefaultQuery("sort_order", "desc") {
	case "desc":
		f.SortDesc = true
	case "asc":
	default:
		failWith(c, http.StatusBadRequest, ErrCodeValidation, "sort_order must be asc or desc",
			map[string]any{"field": "sort_order"})
		return
	}

	var err error
	if f.From, err = utils.ParseTime(c.Query("from_date"), false); err != nil {
		failWith(c, http.StatusBadRequest, ErrCodeValidation, "from_date: "+err.Error(), map[string]any{"field": "from_date"})
		return
	}
	if f.To, err = utils.ParseTime(c.Query("to_date"), true); err != nil {
		failWith(c, http.StatusBadRequest, ErrCodeValidation, "to_date: "+err.Error(), map[string]any{"field": "to_date"})
		return
	}

	items, total, summary, err := h.svc.ListPage(c.Request.Context(), f, page, pageSize)
	if err != nil {
		writeServiceError(c, err, ErrCodeListFailed)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    items,
		Meta: PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
			Summary:    summary,
		},
	})
}

// GetTakedownRequest godoc
// @ID          getTakedownRequest
// @Summary     Takedown request detail
// @Description Returns the request, its review and a chronological timeline.
// @Tags        Takedowns
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Admin ID (demo header)"  example(admin-1)
// @Param       id         path    string  true  "Takedown request ID"
//
// @Success     200  {object}  handlers.Envelope{data=services.TakedownDetail}
// @Failure     403  {object}  handlers.ErrorEnvelope  "Forbidden"
// @Failure     404  {object}  handlers.ErrorEnvelope  "Request not found"
// @Failure     500  {object}  handlers.ErrorEnvelope  "Internal error"
// @Router      /admin/reviews/takedown-requests/{id} [get]
func (h *Handlers) GetTakedownRequest(c *gin.Context) {
	d, err := h.svc.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, d)
}

// ResolveTakedownRequest godoc
// @ID          resolveTakedownRequest
// @Summary     Resolve a takedown request
// @Description Accepts (hiding or removing the review) or rejects an open request. Exactly one resolution succeeds per request; retries with the same Idempotency-Key replay the original response byte for byte.
// @Tags        Takedowns
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Admin ID (demo header)"  example(admin-1)
// @Param       Idempotency-Key  header  string  true  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Takedown request ID"
// @Param       body             body    handlers.ResolveRequest  true  "Resolution"
//
// @Success     200  {object}  handlers.Envelope{data=services.ResolveOutcome}
// @Header      200  {string}  Idempotency-Replayed  "true when served from the idempotency ledger"
// @Failure     400  {object}  handlers.ErrorEnvelope  "Validation error or missing key"
// @Failure     403  {object}  handlers.ErrorEnvelope  "Forbidden"
// @Failure     404  {object}  handlers.ErrorEnvelope  "Request not found"
// @Failure     409  {object}  handlers.ErrorEnvelope  "Already resolved, key conflict, key in progress or concurrent modification"
// @Failure     500  {object}  handlers.ErrorEnvelope  "Resolution failed"
// @Router      /admin/reviews/takedown-requests/{id}/resolve [post]
func (h *Handlers) ResolveTakedownRequest(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	key, found := middleware.GetIdempotencyKey(c)
	if !found {
		key = strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
	}

	cmd := services.ResolveCommand{
		RequestID:      c.Param("id"),
		ActorID:        actorID(c),
		Decision:       strings.TrimSpace(req.Decision),
		Action:         req.Action,
		Reason:         req.Reason,
		AdminNotes:     req.AdminNotes,
		NotifyVendor:   true,
		IdempotencyKey: key,
		CorrelationID:  c.Writer.Header().Get("X-Request-ID"),
	}
	if req.NotifyVendor != nil {
		cmd.NotifyVendor = *req.NotifyVendor
	}
	if req.NotifyReviewer != nil {
		cmd.NotifyReviewer = *req.NotifyReviewer
	}

	res, err := h.svc.Resolve(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err, ErrCodeResolutionFailed)
		return
	}
	if res.Replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	c.JSON(http.StatusOK, RawEnvelope{Success: true, Data: res.Payload})
}

// SubmitTakedownRequest godoc
// @ID          submitTakedownRequest
// @Summary     Request a review takedown
// @Description Opens a takedown request against a review of the calling vendor. A review can have only one open request.
// @Tags        Vendor
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Vendor ID (demo header)"  example(vendor-1)
// @Param       id         path    string  true  "Review ID"
// @Param       body       body    handlers.SubmitRequest  true  "Takedown request"
//
// @Success     201  {object}  handlers.Envelope{data=domain.TakedownRequest}
// @Failure     400  {object}  handlers.ErrorEnvelope  "Validation error"
// @Failure     404  {object}  handlers.ErrorEnvelope  "Review not found"
// @Failure     409  {object}  handlers.ErrorEnvelope  "An open request already exists"
// @Failure     500  {object}  handlers.ErrorEnvelope  "Internal error"
// @Router      /vendor/reviews/{id}/takedown-requests [post]
func (h *Handlers) SubmitTakedownRequest(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	t, err := h.svc.Submit(c.Request.Context(), services.SubmitCommand{
		VendorID:          actorID(c),
		ReviewID:          c.Param("id"),
		ReasonCode:        req.ReasonCode,
		ReasonDescription: req.ReasonDescription,
		VendorNotes:       req.VendorNotes,
		Evidence:          req.Evidence,
		Priority:          strings.ToLower(strings.TrimSpace(req.Priority)),
		CorrelationID:     c.Writer.Header().Get("X-Request-ID"),
	})
	if err != nil {
		writeServiceError(c, err, ErrCodeSubmitFailed)
		return
	}
	ok(c, http.StatusCreated, t)
}

// writeServiceError maps a service error onto a response. fallback is the
// code used for unclassified 500s.
func writeServiceError(c *gin.Context, err error, fallback string) {
	var (
		verr    *services.ValidationError
		already *services.AlreadyResolvedError
	)
	switch {
	case errors.As(err, &verr):
		if verr.Field == middleware.HeaderIdempotencyKey {
			fail(c, http.StatusBadRequest, ErrCodeMissingIdempotencyKey, "Idempotency-Key header is required")
			return
		}
		failWith(c, http.StatusBadRequest, ErrCodeValidation, verr.Error(), map[string]any{"field": verr.Field})
	case errors.As(err, &already):
		failWith(c, http.StatusConflict, ErrCodeAlreadyResolved, "this takedown request has already been resolved",
			map[string]any{
				"current_status": already.Status,
				"decision":       already.Decision,
				"resolved_at":    already.ResolvedAt.UTC().Format(time.RFC3339Nano),
				"resolved_by":    already.ResolvedBy,
			})
	case errors.Is(err, services.ErrTakedownNotFound):
		failWith(c, http.StatusNotFound, ErrCodeRequestNotFound, "takedown request not found",
			map[string]any{"request_id": c.Param("id")})
	case errors.Is(err, services.ErrReviewNotFound):
		fail(c, http.StatusNotFound, ErrCodeReviewNotFound, "review not found")
	case errors.Is(err, services.ErrIdempotencyConflict):
		fail(c, http.StatusConflict, ErrCodeIdempotencyConflict, err.Error())
	case errors.Is(err, services.ErrIdempotencyInProgress):
		c.Header("Retry-After", "1")
		fail(c, http.StatusConflict, ErrCodeIdempotencyInProgress, err.Error())
	case errors.Is(err, services.ErrConcurrencyConflict):
		fail(c, http.StatusConflict, ErrCodeConcurrencyConflict, err.Error())
	case errors.Is(err, services.ErrDuplicateOpenRequest):
		fail(c, http.StatusConflict, ErrCodeDuplicateOpenRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "request cancelled")
	default:
		// Internal detail stays in the log.
		middleware.LoggerFrom(c).Error().Err(err).Msg("takedown operation failed")
		fail(c, http.StatusInternalServerError, fallback, "internal error")
	}
}
