package service

import (
	"github.com/bhardwajharsh207/imageforge/backend/internal/inference"
	"github.com/bhardwajharsh207/imageforge/backend/internal/models"
)

// composeParams builds the model-specific inference call for a request:
// a concrete hosted model id, the user prompt with the family's fixed
// style suffix, and the family's fixed parameter set.
func composeParams(req *models.GenerateRequest) inference.Params {
	switch req.Family() {
	case models.ModelAlternate:
		return inference.Params{
			ModelID:           alternateModelID,
			Prompt:            req.Prompt + alternateStyleSuffix,
			NegativePrompt:    negativePrompt,
			NumInferenceSteps: 30,
			GuidanceScale:     7.0,
			Width:             512,
			Height:            512,
		}
	default:
		return inference.Params{
			ModelID:           primaryModelID,
			Prompt:            req.Prompt + primaryStyleSuffix,
			NegativePrompt:    negativePrompt,
			NumInferenceSteps: 40,
			GuidanceScale:     7.5,
			Width:             1024,
			Height:            1024,
		}
	}
}
