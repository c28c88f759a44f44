package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/domain/retrieval"
)

// Embedder vectorizes the question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorStore returns the k nearest passages, nearest first.
type VectorStore interface {
	SearchKNN(ctx context.Context, collection string, vector []float32, k int) ([]retrieval.Match, error)
}
