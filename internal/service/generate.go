package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bhardwajharsh207/imageforge/backend/internal/config"
	"github.com/bhardwajharsh207/imageforge/backend/internal/inference"
	"github.com/bhardwajharsh207/imageforge/backend/internal/metrics"
	"github.com/bhardwajharsh207/imageforge/backend/internal/models"
)

// ErrNotConfigured is returned while no inference API key is set.
var ErrNotConfigured = errors.New("inference API key is not configured")

// Generator produces raw image bytes for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, p inference.Params) ([]byte, error)
}

// HistoryStore persists per-user generation records.
type HistoryStore interface {
	Insert(ctx context.Context, rec *models.HistoryRecord) error
}

type GenerateService struct {
	logger     *log.Logger
	client     Generator
	history    HistoryStore
	configured bool
}

func NewGenerateService(logger *log.Logger, client Generator, cfg config.InferenceConfig) *GenerateService {
	return &GenerateService{
		logger:     logger,
		client:     client,
		configured: cfg.APIKey != "",
	}
}

func (s *GenerateService) SetHistoryStore(history HistoryStore) {
	s.history = history
}

// Generate selects the model family, composes the prompt, delegates to
// the inference client and encodes the result as a data URL. The record
// write is best-effort: a history failure never fails the generation.
func (s *GenerateService) Generate(ctx context.Context, req *models.GenerateRequest, ownerID string) (*models.GenerateResponse, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	params := composeParams(req)
	start := time.Now()

	img, err := s.client.Generate(ctx, params)
	if err != nil {
		metrics.GenerationsTotal(req.Family(), "error")
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	metrics.GenerationsTotal(req.Family(), "ok")
	metrics.GenerationDuration(req.Family(), time.Since(start))

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)

	if s.history != nil && ownerID != "" {
		rec := &models.HistoryRecord{
			OwnerID:  ownerID,
			Prompt:   req.Prompt,
			Model:    req.Family(),
			ImageURL: dataURL,
		}
		if err := s.history.Insert(ctx, rec); err != nil {
			s.logger.Printf("failed to record history for %s: %v", ownerID, err)
		}
	}

	return &models.GenerateResponse{Output: dataURL}, nil
}
