package service

// Hosted model identifiers per family.
const (
	primaryModelID   = "stabilityai/stable-diffusion-xl-base-1.0"
	alternateModelID = "prompthero/openjourney-v4"
)

// Style suffixes appended to every prompt before it goes upstream.
const (
	primaryStyleSuffix   = ", ultra detailed, sharp focus, 8k, cinematic lighting"
	alternateStyleSuffix = ", mdjrny-v4 style, trending on artstation"
)

const negativePrompt = "blurry, low quality, distorted, watermark, text, deformed"
