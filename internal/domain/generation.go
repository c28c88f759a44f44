package domain

import "context"

// Generator is the language model contract. Implementations return
// ErrModelNotReady for cold-start failures and ErrGenerationFailed otherwise.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// GenerationRequest is one completion call.
type GenerationRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// GenerationResult holds the first output text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
