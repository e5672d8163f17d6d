package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"github.com/bhardwajharsh207/imageforge/backend/internal/models"
	"github.com/bhardwajharsh207/imageforge/backend/internal/ratelimit"
)

// anonymousIdentity keys rate limiting when no network address is
// known. All such callers share one quota.
const anonymousIdentity = "anonymous"

// userIDHeader is set by the fronting auth layer; this service trusts it.
const userIDHeader = "X-User-ID"

type generateService interface {
	Generate(ctx context.Context, req *models.GenerateRequest, ownerID string) (*models.GenerateResponse, error)
}

type historyLister interface {
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.HistoryRecord, error)
}

type GenerateHandler struct {
	service    generateService
	limiter    ratelimit.Limiter
	history    historyLister
	retryAfter string
	logger     *log.Logger
}

func NewGenerateHandler(service generateService, limiter ratelimit.Limiter, window time.Duration, logger *log.Logger) *GenerateHandler {
	if window <= 0 {
		window = time.Minute
	}
	return &GenerateHandler{
		service:    service,
		limiter:    limiter,
		retryAfter: strconv.Itoa(int(window.Seconds())),
		logger:     logger,
	}
}

func (h *GenerateHandler) SetHistory(history historyLister) {
	h.history = history
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
