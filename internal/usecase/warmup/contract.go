package warmup

import (
	"context"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// LanguageModel is the dependency being warmed.
type LanguageModel interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}
