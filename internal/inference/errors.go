package inference

import "fmt"

// Kind classifies a failed generation attempt.
type Kind int

const (
	// KindNetwork is a transport-level failure, no HTTP response at all.
	KindNetwork Kind = iota
	// KindUpstream is a non-2xx response that is neither a warm-up nor a quota signal.
	KindUpstream
	// KindModelLoading means the model is still warming up (503).
	KindModelLoading
	// KindRateLimited means the provider rejected the call for quota reasons (429).
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUpstream:
		return "upstream"
	case KindModelLoading:
		return "model_loading"
	case KindRateLimited:
		return "rate_limited"
	}
	return "unknown"
}

// Error carries the upstream status and body for operators while Kind
// drives caller-facing mapping.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       []byte
	// EstimatedTime is the provider's warm-up estimate in seconds, when it sent one.
	EstimatedTime float64

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("inference %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("inference %s: status %d: %s", e.Kind, e.StatusCode, truncate(e.Body, 256))
}

func (e *Error) Unwrap() error {
	return e.cause
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
