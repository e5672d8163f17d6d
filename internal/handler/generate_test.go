package handler

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhardwajharsh207/imageforge/backend/internal/inference"
	"github.com/bhardwajharsh207/imageforge/backend/internal/models"
	"github.com/bhardwajharsh207/imageforge/backend/internal/service"
)

type mockService struct {
	calls   int
	lastReq *models.GenerateRequest
	ownerID string
	resp    *models.GenerateResponse
	err     error
}

func (m *mockService) Generate(_ context.Context, req *models.GenerateRequest, ownerID string) (*models.GenerateResponse, error) {
	m.calls++
	m.lastReq = req
	m.ownerID = ownerID
	return m.resp, m.err
}

type stubLimiter struct {
	allowed    bool
	err        error
	identities []string
}

func (s *stubLimiter) Allow(_ context.Context, identity string) (bool, error) {
	s.identities = append(s.identities, identity)
	return s.allowed, s.err
}

func newTestHandler(svc *mockService, limiter *stubLimiter) *GenerateHandler {
	return NewGenerateHandler(svc, limiter, time.Minute, log.New(io.Discard, "", 0))
}

func postGenerate(h *GenerateHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.Generate(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, sonic.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestGenerateEmptyPromptRejectedBeforeAnyCall(t *testing.T) {
	svc := &mockService{}
	limiter := &stubLimiter{allowed: true}
	h := newTestHandler(svc, limiter)

	for _, body := range []string{`{"prompt":""}`, `{"model":"primary"}`, `{}`} {
		rr := postGenerate(h, body, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body %q", body)
	}
	assert.Zero(t, svc.calls, "validation happens before any network call")
	assert.Empty(t, limiter.identities, "an invalid request must not consume quota")
}

func TestGenerateInvalidJSON(t *testing.T) {
	svc := &mockService{}
	h := newTestHandler(svc, &stubLimiter{allowed: true})

	rr := postGenerate(h, `{"prompt":`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, svc.calls)
}

func TestGenerateRateLimited(t *testing.T) {
	svc := &mockService{}
	h := newTestHandler(svc, &stubLimiter{allowed: false})

	rr := postGenerate(h, `{"prompt":"a cat"}`, nil)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Zero(t, svc.calls)
}

func TestGenerateRetryAfterFollowsWindow(t *testing.T) {
	svc := &mockService{}
	h := NewGenerateHandler(svc, &stubLimiter{allowed: false}, 30*time.Second, log.New(io.Discard, "", 0))

	rr := postGenerate(h, `{"prompt":"a cat"}`, nil)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "30", rr.Header().Get("Retry-After"), "the hint tracks the configured window")
}

func TestGenerateLimiterErrorFailsOpen(t *testing.T) {
	svc := &mockService{resp: &models.GenerateResponse{Output: "data:image/jpeg;base64,aGk="}}
	h := newTestHandler(svc, &stubLimiter{err: fmt.Errorf("redis down")})

	rr := postGenerate(h, `{"prompt":"a cat"}`, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, svc.calls)
}

func TestGenerateSuccess(t *testing.T) {
	svc := &mockService{resp: &models.GenerateResponse{Output: "data:image/jpeg;base64,aGk="}}
	h := newTestHandler(svc, &stubLimiter{allowed: true})

	rr := postGenerate(h, `{"prompt":"a cat","model":"alternate"}`, map[string]string{"X-User-ID": "user-42"})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp models.GenerateResponse
	require.NoError(t, sonic.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "data:image/jpeg;base64,aGk=", resp.Output)
	assert.Equal(t, "user-42", svc.ownerID)
	assert.Equal(t, "alternate", svc.lastReq.Model)
}

func TestGenerateErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantHint   string
		retryAfter string
	}{
		{
			name:       "model loading maps to 503 with wait hint",
			err:        fmt.Errorf("generation failed: %w", &inference.Error{Kind: inference.KindModelLoading, StatusCode: 503, EstimatedTime: 20}),
			wantCode:   http.StatusServiceUnavailable,
			wantHint:   "warming up",
			retryAfter: "20",
		},
		{
			name:     "upstream rate limit maps to 429",
			err:      fmt.Errorf("generation failed: %w", &inference.Error{Kind: inference.KindRateLimited, StatusCode: 429}),
			wantCode: http.StatusTooManyRequests,
			wantHint: "busy",
		},
		{
			name:     "upstream error maps to generic 500",
			err:      fmt.Errorf("generation failed: %w", &inference.Error{Kind: inference.KindUpstream, StatusCode: 500, Body: []byte("secret diagnostic detail")}),
			wantCode: http.StatusInternalServerError,
			wantHint: "try again later",
		},
		{
			name:     "network error maps to generic 500",
			err:      fmt.Errorf("generation failed: %w", &inference.Error{Kind: inference.KindNetwork}),
			wantCode: http.StatusInternalServerError,
			wantHint: "try again later",
		},
		{
			name:     "missing key maps to 500 not configured",
			err:      service.ErrNotConfigured,
			wantCode: http.StatusInternalServerError,
			wantHint: "not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&mockService{err: tt.err}, &stubLimiter{allowed: true})
			rr := postGenerate(h, `{"prompt":"a cat"}`, nil)

			assert.Equal(t, tt.wantCode, rr.Code)
			resp := decodeError(t, rr)
			assert.Contains(t, resp.Error, tt.wantHint)
			assert.NotContains(t, resp.Error, "secret diagnostic detail", "upstream detail must not leak to callers")
			if tt.retryAfter != "" {
				assert.Equal(t, tt.retryAfter, rr.Header().Get("Retry-After"))
			}
		})
	}
}

func TestCallerIdentity(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "203.0.113.7", "10.0.0.1:1234", "203.0.113.7"},
		{"forwarded chain takes first hop", "203.0.113.7, 70.41.3.18", "10.0.0.1:1234", "203.0.113.7"},
		{"forwarded with spaces", "  203.0.113.7  ", "10.0.0.1:1234", "203.0.113.7"},
		{"falls back to remote addr", "", "10.0.0.1:1234", "10.0.0.1"},
		{"falls back to sentinel", "", "", "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/generate", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, callerIdentity(req))
		})
	}
}

func TestGenerateUsesForwardedAddressForRateLimit(t *testing.T) {
	svc := &mockService{resp: &models.GenerateResponse{Output: "x"}}
	limiter := &stubLimiter{allowed: true}
	h := newTestHandler(svc, limiter)

	postGenerate(h, `{"prompt":"a cat"}`, map[string]string{"X-Forwarded-For": "203.0.113.7"})

	require.Len(t, limiter.identities, 1)
	assert.Equal(t, "203.0.113.7", limiter.identities[0])
}
