// Package inference calls a hosted text-to-image endpoint with bounded
// retries and a typed error taxonomy.
package inference

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/bhardwajharsh207/imageforge/backend/internal/config"
	"github.com/bhardwajharsh207/imageforge/backend/internal/metrics"
)

// Params describes one generation against a concrete hosted model.
type Params struct {
	ModelID           string
	Prompt            string
	NegativePrompt    string
	NumInferenceSteps int
	GuidanceScale     float64
	Width             int
	Height            int
}

// parameters is the wire shape of the fixed parameter set sent with
// every attempt. The seed is randomized per attempt, so a retried call
// is expected to produce a different image for the same prompt.
type parameters struct {
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Seed              int64   `json:"seed"`
}

type payload struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

// errorEnvelope is the provider's JSON error shape. The provider does
// not always set a content type, so bodies are decoded against it
// before being trusted as image bytes.
type errorEnvelope struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

type Client struct {
	baseURL      string
	apiKey       string
	backupAPIKey string
	maxRetries   int
	retryDelay   time.Duration
	httpClient   *http.Client
	logger       *log.Logger

	// injection points for tests
	sleep func(ctx context.Context, d time.Duration) error
	seed  func() int64
}

func New(cfg config.InferenceConfig, logger *log.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		backupAPIKey: cfg.BackupAPIKey,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		httpClient:   &http.Client{},
		logger:       logger,
		sleep:        sleepCtx,
		seed:         rand.Int63,
	}
}

// Generate produces raw image bytes for the composed prompt. A failure
// on the primary key that is not a warm-up signal gets one full retry
// cycle on the backup key; if that also fails, the primary's error is
// the one surfaced.
func (c *Client) Generate(ctx context.Context, p Params) ([]byte, error) {
	img, err := c.generateWithKey(ctx, p, c.apiKey)
	if err == nil {
		return img, nil
	}

	var ierr *Error
	if c.backupAPIKey == "" || !errors.As(err, &ierr) || ierr.Kind == KindModelLoading {
		return nil, err
	}

	c.logger.Printf("primary credential failed (%s), retrying with backup key", ierr.Kind)
	img, backupErr := c.generateWithKey(ctx, p, c.backupAPIKey)
	if backupErr != nil {
		return nil, err
	}
	return img, nil
}

// generateWithKey runs one bounded retry cycle: up to maxRetries
// retries with a fixed delay between attempts. Upstream 429 is never
// retried locally, the quota is remote.
func (c *Client) generateWithKey(ctx context.Context, p Params, key string) ([]byte, error) {
	var lastErr *Error

	for attempt := 0; ; attempt++ {
		img, ierr := c.doAttempt(ctx, p, key)
		if ierr == nil {
			return img, nil
		}
		if ierr.Kind == KindRateLimited {
			return nil, ierr
		}

		lastErr = ierr
		if attempt >= c.maxRetries {
			return nil, lastErr
		}

		c.logger.Printf("inference attempt %d/%d failed (%s), retrying in %s",
			attempt+1, c.maxRetries+1, ierr.Kind, c.retryDelay)
		metrics.UpstreamRetriesTotal(ierr.Kind.String())

		if err := c.sleep(ctx, c.retryDelay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) doAttempt(ctx context.Context, p Params, key string) ([]byte, *Error) {
	body, err := sonic.Marshal(payload{
		Inputs: p.Prompt,
		Parameters: parameters{
			NegativePrompt:    p.NegativePrompt,
			NumInferenceSteps: p.NumInferenceSteps,
			GuidanceScale:     p.GuidanceScale,
			Width:             p.Width,
			Height:            p.Height,
			Seed:              c.seed(),
		},
	})
	if err != nil {
		return nil, &Error{Kind: KindNetwork, cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+p.ModelID, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, cause: err}
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		e := &Error{Kind: KindModelLoading, StatusCode: resp.StatusCode, Body: respBody}
		var env errorEnvelope
		if sonic.Unmarshal(respBody, &env) == nil {
			e.EstimatedTime = env.EstimatedTime
		}
		return nil, e
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, StatusCode: resp.StatusCode, Body: respBody}
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, &Error{Kind: KindUpstream, StatusCode: resp.StatusCode, Body: respBody}
	}

	// The provider sometimes sends a JSON error with a 2xx status and no
	// reliable content type. Trust the body as image bytes only after the
	// error envelope fails to match.
	var env errorEnvelope
	if sonic.Unmarshal(respBody, &env) == nil && env.Error != "" {
		return nil, &Error{Kind: KindUpstream, StatusCode: resp.StatusCode, Body: respBody}
	}

	return respBody, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
