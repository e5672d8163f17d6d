package handler

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/bhardwajharsh207/imageforge/backend/internal/inference"
	"github.com/bhardwajharsh207/imageforge/backend/internal/metrics"
	"github.com/bhardwajharsh207/imageforge/backend/internal/models"
	"github.com/bhardwajharsh207/imageforge/backend/internal/service"
)

// Generate godoc
// @Summary Generate an image from a text prompt
// @Description Forwards the prompt to the hosted image model and returns the result as a base64 data URL. Rate limited per caller address.
// @Tags generate
// @Accept json
// @Produce json
// @Param request body models.GenerateRequest true "Generation request"
// @Success 200 {object} models.GenerateResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /generate [post]
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("request validation failed: %s", err))
		return
	}

	identity := callerIdentity(r)
	allowed, err := h.limiter.Allow(r.Context(), identity)
	if err != nil {
		// an unreachable limiter store must not take generation down
		h.logger.Printf("rate limiter error for %s: %v", identity, err)
		allowed = true
	}
	if !allowed {
		metrics.RateLimitRejected()
		w.Header().Set("Retry-After", h.retryAfter)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again in "+h.retryAfter+" seconds")
		return
	}

	resp, err := h.service.Generate(r.Context(), &req, r.Header.Get(userIDHeader))
	if err != nil {
		h.writeGenerateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeGenerateError maps inference failures to caller-facing statuses.
// Upstream diagnostic detail stays in the logs.
func (h *GenerateHandler) writeGenerateError(w http.ResponseWriter, err error) {
	var ierr *inference.Error

	switch {
	case errors.Is(err, service.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "image generation is not configured")
	case errors.As(err, &ierr) && ierr.Kind == inference.KindModelLoading:
		h.logger.Printf("model warming up (estimated %.0fs): %v", ierr.EstimatedTime, err)
		w.Header().Set("Retry-After", "20")
		writeError(w, http.StatusServiceUnavailable, "the model is warming up, try again in about 20 seconds")
	case errors.As(err, &ierr) && ierr.Kind == inference.KindRateLimited:
		writeError(w, http.StatusTooManyRequests, "the image service is busy, try again shortly")
	default:
		h.logger.Printf("generation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "image generation failed, try again later")
	}
}

// callerIdentity derives the rate-limit key from the forwarded address,
// falling back to the socket peer and finally a shared sentinel. This
// is the network identity, not the authenticated user.
func callerIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return anonymousIdentity
}
