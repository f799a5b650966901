package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/review-takedown-backend/internal/domain"
	"github.com/tbourn/review-takedown-backend/internal/http/middleware"
	"github.com/tbourn/review-takedown-backend/internal/repo"
	"github.com/tbourn/review-takedown-backend/internal/services"
)

// ---------- stub service ----------

type stubTakedownSvc struct {
	resolve  func(context.Context, services.ResolveCommand) (*services.ResolveResult, error)
	submit   func(context.Context, services.SubmitCommand) (*domain.TakedownRequest, error)
	detail   func(context.Context, string) (*services.TakedownDetail, error)
	listPage func(context.Context, repo.TakedownFilter, int, int) ([]domain.TakedownRequest, int64, repo.TakedownSummary, error)
}

func (s stubTakedownSvc) Resolve(ctx context.Context, cmd services.ResolveCommand) (*services.ResolveResult, error) {
	if s.resolve != nil {
		return s.resolve(ctx, cmd)
	}
	return &services.ResolveResult{Payload: json.RawMessage(`{}`)}, nil
}

func (s stubTakedownSvc) Submit(ctx context.Context, cmd services.SubmitCommand) (*domain.TakedownRequest, error) {
	if s.submit != nil {
		return s.submit(ctx, cmd)
	}
	return &domain.TakedownRequest{ID: "t1"}, nil
}

func (s stubTakedownSvc) Detail(ctx context.Context, id string) (*services.TakedownDetail, error) {
	if s.detail != nil {
		return s.detail(ctx, id)
	}
	return &services.TakedownDetail{}, nil
}

func (s stubTakedownSvc) ListPage(ctx context.Context, f repo.TakedownFilter, page, size int) ([]domain.TakedownRequest, int64, repo.TakedownSummary, error) {
	if s.listPage != nil {
		return s.listPage(ctx, f, page, size)
	}
	return nil, 0, repo.TakedownSummary{}, nil
}

func newTestRouter(svc TakedownService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(svc)
	r.GET("/admin/reviews/takedown-requests", h.ListTakedownRequests)
	r.GET("/admin/reviews/takedown-requests/:id", h.GetTakedownRequest)
	r.POST("/admin/reviews/takedown-requests/:id/resolve", h.ResolveTakedownRequest)
	r.POST("/vendor/reviews/:id/takedown-requests", h.SubmitTakedownRequest)
	return r
}

func do(r http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	if env.Success {
		t.Fatalf("error envelope has success=true")
	}
	return env.Error
}

// ---------- tests ----------

func Test_actorID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := actorID(c); got != "demo-admin" {
		t.Fatalf("fallback = %q", got)
	}

	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-User-ID", "  admin-7 ")
	if got := actorID(c); got != "admin-7" {
		t.Fatalf("header = %q", got)
	}

	c.Set("userID", "admin-9")
	if got := actorID(c); got != "admin-9" {
		t.Fatalf("context = %q", got)
	}
}

func TestResolve_PassesCommandAndDefaults(t *testing.T) {
	var got services.ResolveCommand
	svc := stubTakedownSvc{resolve: func(_ context.Context, cmd services.ResolveCommand) (*services.ResolveResult, error) {
		got = cmd
		return &services.ResolveResult{Payload: json.RawMessage(`{"request":{"id":"r1"}}`)}, nil
	}}
	r := newTestRouter(svc)

	w := do(r, http.MethodPost, "/admin/reviews/takedown-requests/r1/resolve",
		map[string]any{"decision": "accept", "action": "hide", "reason": "x"},
		map[string]string{"Idempotency-Key": "k1", "X-User-ID": "admin-1"})

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != `{"success":true,"data":{"request":{"id":"r1"}}}` {
		t.Fatalf("body=%s", w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("fresh resolve must not be marked replayed")
	}
	if got.RequestID != "r1" || got.ActorID != "admin-1" || got.IdempotencyKey != "k1" {
		t.Fatalf("unexpected command: %+v", got)
	}
	if !got.NotifyVendor || got.NotifyReviewer {
		t.Fatalf("notification defaults wrong: vendor=%v reviewer=%v", got.NotifyVendor, got.NotifyReviewer)
	}
	if got.Action == nil || *got.Action != domain.ActionHide {
		t.Fatalf("action not passed")
	}
}

func TestResolve_ReplayHeaderAndExplicitFlags(t *testing.T) {
	var got services.ResolveCommand
	svc := stubTakedownSvc{resolve: func(_ context.Context, cmd services.ResolveCommand) (*services.ResolveResult, error) {
		got = cmd
		return &services.ResolveResult{Payload: json.RawMessage(`{}`), Replayed: true}, nil
	}}
	r := newTestRouter(svc)

	w := do(r, http.MethodPost, "/admin/reviews/takedown-requests/r1/resolve",
		map[string]any{"decision": "reject", "reason": "x", "notify_vendor": false, "notify_reviewer": true},
		map[string]string{"Idempotency-Key": "k1"})
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("status=%d replayed=%q", w.Code, w.Header().Get("Idempotency-Replayed"))
	}
	if got.NotifyVendor || !got.NotifyReviewer {
		t.Fatalf("explicit flags lost: %+v", got)
	}
}

func TestResolve_UsesKeyStashedByMiddleware(t *testing.T) {
	var got string
	svc := stubTakedownSvc{resolve: func(_ context.Context, cmd services.ResolveCommand) (*services.ResolveResult, error) {
		got = cmd.IdempotencyKey
		return &services.ResolveResult{Payload: json.RawMessage(`{}`)}, nil
	}}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/t/:id/resolve",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{Required: true}, nil),
		New(svc).ResolveTakedownRequest)

	w := do(r, http.MethodPost, "/t/r1/resolve", map[string]any{"decision": "reject", "reason": "x"},
		map[string]string{"Idempotency-Key": "stashed-key"})
	if w.Code != http.StatusOK || got != "stashed-key" {
		t.Fatalf("status=%d key=%q", w.Code, got)
	}
}

func TestResolve_BadJSON(t *testing.T) {
	r := newTestRouter(stubTakedownSvc{})
	req := httptest.NewRequest(http.MethodPost, "/admin/reviews/takedown-requests/r1/resolve", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest || decodeErr(t, w).Code != ErrCodeBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestResolve_ErrorMappings(t *testing.T) {
	resolvedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing key", &services.ValidationError{Field: "Idempotency-Key", Message: "header is required"}, 400, ErrCodeMissingIdempotencyKey},
		{"validation", &services.ValidationError{Field: "reason", Message: "too short"}, 400, ErrCodeValidation},
		{"not found", services.ErrTakedownNotFound, 404, ErrCodeRequestNotFound},
		{"review missing", services.ErrReviewNotFound, 404, ErrCodeReviewNotFound},
		{"already", &services.AlreadyResolvedError{Status: "accepted", Decision: "accept", ResolvedAt: resolvedAt, ResolvedBy: "admin-1"}, 409, ErrCodeAlreadyResolved},
		{"idem conflict", services.ErrIdempotencyConflict, 409, ErrCodeIdempotencyConflict},
		{"idem in progress", services.ErrIdempotencyInProgress, 409, ErrCodeIdempotencyInProgress},
		{"cas conflict", services.ErrConcurrencyConflict, 409, ErrCodeConcurrencyConflict},
		{"audit", services.ErrAuditWriteFailed, 500, ErrCodeResolutionFailed},
		{"other", errors.New("disk full"), 500, ErrCodeResolutionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := stubTakedownSvc{resolve: func(context.Context, services.ResolveCommand) (*services.ResolveResult, error) {
				return nil, tc.err
			}}
			w := do(newTestRouter(svc), http.MethodPost, "/admin/reviews/takedown-requests/r1/resolve",
				map[string]any{"decision": "accept"}, nil)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			e := decodeErr(t, w)
			if e.Code != tc.code {
				t.Fatalf("code=%q want %q", e.Code, tc.code)
			}
			switch tc.code {
			case ErrCodeValidation:
				if e.Details["field"] != "reason" {
					t.Fatalf("details=%v", e.Details)
				}
			case ErrCodeAlreadyResolved:
				if e.Details["current_status"] != "accepted" || e.Details["resolved_by"] != "admin-1" ||
					e.Details["resolved_at"] != "2025-01-02T03:04:05Z" {
					t.Fatalf("details=%v", e.Details)
				}
			case ErrCodeResolutionFailed:
				if e.Message != "internal error" {
					t.Fatalf("internal detail leaked: %q", e.Message)
				}
			case ErrCodeIdempotencyInProgress:
				if w.Header().Get("Retry-After") != "1" {
					t.Fatalf("Retry-After=%q", w.Header().Get("Retry-After"))
				}
			}
		})
	}
}

func TestList_ParsesQuery(t *testing.T) {
	var (
		gotF    repo.TakedownFilter
		gotPage int
		gotSize int
	)
	svc := stubTakedownSvc{listPage: func(_ context.Context, f repo.TakedownFilter, p, s int) ([]domain.TakedownRequest, int64, repo.TakedownSummary, error) {
		gotF, gotPage, gotSize = f, p, s
		return []domain.TakedownRequest{{ID: "a"}}, 51, repo.TakedownSummary{Open: 51}, nil
	}}
	r := newTestRouter(svc)

	w := do(r, http.MethodGet, "/admin/reviews/takedown-requests?page=2&page_size=25&reason_code=spam&vendor_id=v1&sort_by=priority&sort_order=asc&from_date=2025-01-01&to_date=2025-01-31", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotPage != 2 || gotSize != 25 {
		t.Fatalf("page=%d size=%d", gotPage, gotSize)
	}
	if gotF.Status != domain.StatusOpen || gotF.ReasonCode != "spam" || gotF.VendorID != "v1" ||
		gotF.SortBy != "priority" || gotF.SortDesc {
		t.Fatalf("filter=%+v", gotF)
	}
	if gotF.From == nil || gotF.To == nil || !gotF.To.After(*gotF.From) {
		t.Fatalf("dates=%v %v", gotF.From, gotF.To)
	}

	var resp ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	m := resp.Meta
	if !resp.Success || m.TotalItems != 51 || m.TotalPages != 3 || !m.HasNext || !m.HasPrev || m.Summary.Open != 51 {
		t.Fatalf("meta=%+v", m)
	}
}

func TestList_DefaultsAndAll(t *testing.T) {
	var gotF repo.TakedownFilter
	var gotSize int
	svc := stubTakedownSvc{listPage: func(_ context.Context, f repo.TakedownFilter, _ int, s int) ([]domain.TakedownRequest, int64, repo.TakedownSummary, error) {
		gotF, gotSize = f, s
		return nil, 0, repo.TakedownSummary{}, nil
	}}
	r := newTestRouter(svc)

	w := do(r, http.MethodGet, "/admin/reviews/takedown-requests?status=all&page_size=1000", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if gotF.Status != "" || !gotF.SortDesc || gotF.SortBy != "created_at" || gotSize != maxPageSize {
		t.Fatalf("filter=%+v size=%d", gotF, gotSize)
	}
	var resp ListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Meta.HasNext || resp.Meta.HasPrev || resp.Meta.TotalPages != 0 {
		t.Fatalf("meta=%+v", resp.Meta)
	}
}

func TestList_BadQuery(t *testing.T) {
	r := newTestRouter(stubTakedownSvc{})
	for _, q := range []string{"status=closed", "sort_order=sideways", "from_date=yesterday", "to_date=13/01/2025"} {
		w := do(r, http.MethodGet, "/admin/reviews/takedown-requests?"+q, nil, nil)
		if w.Code != http.StatusBadRequest || decodeErr(t, w).Code != ErrCodeValidation {
			t.Fatalf("%s: status=%d body=%s", q, w.Code, w.Body.String())
		}
	}

	svc := stubTakedownSvc{listPage: func(context.Context, repo.TakedownFilter, int, int) ([]domain.TakedownRequest, int64, repo.TakedownSummary, error) {
		return nil, 0, repo.TakedownSummary{}, errors.New("db down")
	}}
	w := do(newTestRouter(svc), http.MethodGet, "/admin/reviews/takedown-requests", nil, nil)
	if w.Code != http.StatusInternalServerError || decodeErr(t, w).Code != ErrCodeListFailed {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestDetail_SuccessAndNotFound(t *testing.T) {
	svc := stubTakedownSvc{detail: func(_ context.Context, id string) (*services.TakedownDetail, error) {
		if id != "t1" {
			return nil, services.ErrTakedownNotFound
		}
		return &services.TakedownDetail{
			Request:  &domain.TakedownRequest{ID: "t1"},
			Timeline: []services.TimelineEvent{{Event: services.EventTakedownRequested}},
		}, nil
	}}
	r := newTestRouter(svc)

	w := do(r, http.MethodGet, "/admin/reviews/takedown-requests/t1", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body struct {
		Success bool                    `json:"success"`
		Data    services.TakedownDetail `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Data.Request.ID != "t1" || len(body.Data.Timeline) != 1 {
		t.Fatalf("body=%s", w.Body.String())
	}

	w = do(r, http.MethodGet, "/admin/reviews/takedown-requests/nope", nil, nil)
	e := decodeErr(t, w)
	if w.Code != http.StatusNotFound || e.Code != ErrCodeRequestNotFound || e.Details["request_id"] != "nope" {
		t.Fatalf("status=%d err=%+v", w.Code, e)
	}
}

func TestSubmit_SuccessAndErrors(t *testing.T) {
	var got services.SubmitCommand
	svc := stubTakedownSvc{submit: func(_ context.Context, cmd services.SubmitCommand) (*domain.TakedownRequest, error) {
		got = cmd
		switch cmd.ReasonCode {
		case "dup":
			return nil, services.ErrDuplicateOpenRequest
		case "":
			return nil, &services.ValidationError{Field: "reason_code", Message: "is required"}
		}
		return &domain.TakedownRequest{ID: "t9", RequestNumber: "TR-2025-000009"}, nil
	}}
	r := newTestRouter(svc)

	w := do(r, http.MethodPost, "/vendor/reviews/rv1/takedown-requests",
		map[string]any{"reason_code": "spam", "reason_description": "d", "priority": " HIGH "},
		map[string]string{"X-User-ID": "vendor-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.VendorID != "vendor-1" || got.ReviewID != "rv1" || got.Priority != "high" {
		t.Fatalf("cmd=%+v", got)
	}

	w = do(r, http.MethodPost, "/vendor/reviews/rv1/takedown-requests", map[string]any{"reason_code": "dup"}, nil)
	if w.Code != http.StatusConflict || decodeErr(t, w).Code != ErrCodeDuplicateOpenRequest {
		t.Fatalf("dup status=%d", w.Code)
	}

	w = do(r, http.MethodPost, "/vendor/reviews/rv1/takedown-requests", map[string]any{}, nil)
	if w.Code != http.StatusBadRequest || decodeErr(t, w).Code != ErrCodeValidation {
		t.Fatalf("invalid status=%d", w.Code)
	}
}
