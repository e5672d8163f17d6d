package models

import "fmt"

// Model families exposed to callers.
const (
	ModelPrimary   = "primary"
	ModelAlternate = "alternate"
)

// GenerateRequest represents request for generate endpoint
type GenerateRequest struct {
	Prompt string `json:"prompt" example:"a lighthouse at dawn, oil painting"`
	Model  string `json:"model" example:"primary"`
}

func (r GenerateRequest) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("prompt is empty")
	}
	return nil
}

// Family normalizes the model field to a known family.
// Unknown values fall back to the primary family.
func (r GenerateRequest) Family() string {
	if r.Model == ModelAlternate {
		return ModelAlternate
	}
	return ModelPrimary
}

type GenerateResponse struct {
	Output string `json:"output" example:"data:image/jpeg;base64,/9j/4AAQ..."`
}

type ErrorResponse struct {
	Error string `json:"error" example:"prompt is empty"`
}
