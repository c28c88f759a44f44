package rag

import (
	"context"
	"time"
)

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// LanguageModel produces text for a prompt. Return an error wrapping
// ErrModelNotReady while the model is still loading.
type LanguageModel interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// GenerationRequest is a single-prompt completion request.
type GenerationRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// GenerationResult is the produced text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Question is a validated request. Zero values use the client defaults.
type Question struct {
	Text       string
	Collection string
	MaxResults int
	// Threshold overrides the similarity cutoff when non-nil.
	Threshold *float64
}

// Answer is the outcome of one question. Err is non-nil when the pipeline
// failed; Text then carries a human-readable explanation.
type Answer struct {
	ID                string
	Text              string
	Confidence        float64
	Sources           []Source
	Query             string
	TotalSourcesFound int
	Elapsed           time.Duration
	Timestamp         time.Time
	// Kind classifies a failure: dependency_unavailable, model_not_ready,
	// generation_failed or internal_error. Empty on success.
	Kind string
	Err  error
}

// Source is a passage the answer was grounded on, most similar first.
type Source struct {
	Content    string
	Metadata   map[string]any
	Similarity float64
	Rank       int
	Page       *int
	Source     string
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "healthy" or "unhealthy"
	Checks map[string]string // component -> "healthy"/"unhealthy"
}
