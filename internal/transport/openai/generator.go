package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/metrics"
)

// Generator is a language model backed by the chat completions API.
type Generator struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// NewGenerator creates an OpenAI-compatible language model client.
func NewGenerator(cfg *Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:   newClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   logger,
	}
}

// Generate implements domain.Generator with a single user turn.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		if isModelNotReady(err) {
			metrics.ObserveGeneration(g.provider, g.model, "not_ready", elapsed, 0, 0)
			return domain.GenerationResult{}, parseAPIError("generation", err, domain.ErrModelNotReady)
		}
		metrics.ObserveGeneration(g.provider, g.model, "error", elapsed, 0, 0)
		return domain.GenerationResult{}, parseAPIError("generation", err, domain.ErrGenerationFailed)
	}

	if len(resp.Choices) == 0 {
		metrics.ObserveGeneration(g.provider, g.model, "error", elapsed, 0, 0)
		return domain.GenerationResult{}, fmt.Errorf("no choices in completion: %w", domain.ErrGenerationFailed)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		metrics.ObserveGeneration(g.provider, g.model, "error", elapsed, 0, 0)
		return domain.GenerationResult{}, fmt.Errorf("empty completion text: %w", domain.ErrGenerationFailed)
	}

	metrics.ObserveGeneration(g.provider, g.model, "success", elapsed,
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	g.logger.Debug("Generation completed",
		zap.String("model", g.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return domain.GenerationResult{
		Text:             text,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
