package provider

import "time"

// ProgressFunc receives progress in [0,1] while a generation is in flight.
type ProgressFunc func(pct float64)

// GenerateRequest contains all parameters for one generation call.
type GenerateRequest struct {
	// Prompt is the task body.
	Prompt string

	// SystemPrompt fixes the output contract.
	SystemPrompt string

	// Temperature overrides the configured temperature when > 0.
	Temperature float64

	// MaxTokens overrides the configured response limit when > 0.
	MaxTokens int

	// OnProgress, when set, receives progress updates: real streaming
	// percentages in streaming mode, the simulated stage curve otherwise.
	OnProgress ProgressFunc
}

// TokenUsage counts tokens for one call. When the remote API reports no
// usage, counts are estimated from whitespace-separated words and Estimated
// is set.
type TokenUsage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

// Response is a completed generation.
type Response struct {
	Content      string
	Provider     string
	Model        string
	Usage        TokenUsage
	Latency      time.Duration
	FinishReason string

	// RetryCount is how many transport retries the client performed before
	// this response succeeded.
	RetryCount int
}
