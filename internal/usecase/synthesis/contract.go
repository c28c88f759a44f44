package synthesis

import (
	"context"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// LanguageModel produces text for a prompt.
type LanguageModel interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}
