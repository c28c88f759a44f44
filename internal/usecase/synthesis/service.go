// Package synthesis builds the grounded prompt and asks the language model for an answer.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/logger"
)

// Options control the generation call.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Service synthesizes answers from assembled context.
type Service struct {
	model  LanguageModel
	opts   Options
	logger *zap.Logger
}

// New creates a synthesis service. A non-positive MaxTokens uses domain.DefaultMaxTokens.
func New(model LanguageModel, opts Options, logger *zap.Logger) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = domain.DefaultMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{model: model, opts: opts, logger: logger}
}

// Prompt renders the grounded question template.
func Prompt(question, contextText string) string {
	return "Context:\n" + contextText +
		"\n\nQuestion: " + question +
		"\n\nAnswer the question based only on the context above. Be concise and cite sources by their Source N labels."
}

// Synthesize asks the model to answer question from contextText.
// Every failure, including an empty answer, wraps domain.ErrGenerationFailed.
func (s *Service) Synthesize(ctx context.Context, question, contextText string) (string, error) {
	res, err := s.model.Generate(ctx, domain.GenerationRequest{
		Prompt:      Prompt(question, contextText),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailed) {
			return "", fmt.Errorf("generate: %w", err)
		}
		return "", fmt.Errorf("generate: %w: %w", domain.ErrGenerationFailed, err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("generate: empty answer: %w", domain.ErrGenerationFailed)
	}

	logger.FromContextOr(ctx, s.logger).Debug("Answer synthesized",
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
		zap.Int("answer_chars", len(text)),
	)
	return text, nil
}
