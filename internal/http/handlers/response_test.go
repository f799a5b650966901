package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func Test_fail_500_LogsAndBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// capture logs from LoggerFrom(c)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	// simulate RequestID + request-scoped logger
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})

	r.GET("/boom", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, "internal_error", "kaboom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}

	var env ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("json: %v", err)
	}
	resp := env.Error
	if env.Success || resp.RequestID != "rid-500" || resp.Code != "internal_error" || resp.Message != "kaboom" {
		t.Fatalf("unexpected body: %+v", env)
	}

	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func Test_Fail_404_Details_And_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-404")
		c.Next()
	})

	r.GET("/missing", func(c *gin.Context) {
		Fail(c, http.StatusNotFound, "not_found", "nope")
	})
	r.GET("/conflict", func(c *gin.Context) {
		failWith(c, http.StatusConflict, ErrCodeAlreadyResolved, "done", map[string]any{"current_status": "accepted"})
	})
	r.GET("/ok", func(c *gin.Context) {
		ok(c, http.StatusCreated, gin.H{"n": 1})
	})

	// 404 without details
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if strings.Contains(w.Body.String(), "details") {
		t.Fatalf("details should be omitted: %s", w.Body.String())
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("json 404: %v", err)
	}
	if env.Error.RequestID != "rid-404" || env.Error.Code != "not_found" || env.Error.Message != "nope" {
		t.Fatalf("unexpected 404 body: %+v", env)
	}

	// 409 with details
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conflict", nil))
	env = ErrorEnvelope{}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("json 409: %v", err)
	}
	if env.Error.Details["current_status"] != "accepted" {
		t.Fatalf("unexpected details: %+v", env.Error.Details)
	}

	// ok (201)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d", w.Code)
	}
	if got := w.Body.String(); got != `{"success":true,"data":{"n":1}}` {
		t.Fatalf("unexpected ok body: %s", got)
	}
}

func TestRawEnvelope_KeepsBytes(t *testing.T) {
	raw := json.RawMessage(`{"b":2,"a":1}`)
	out, err := json.Marshal(RawEnvelope{Success: true, Data: raw})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"success":true,"data":{"b":2,"a":1}}` {
		t.Fatalf("got %s", out)
	}
}
