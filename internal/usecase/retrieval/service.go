// Package retrieval turns a question into ranked, threshold-filtered passages.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/domain/query"
	"github.com/kailas-cloud/ragd/internal/domain/retrieval"
	"github.com/kailas-cloud/ragd/internal/domain/similarity"
	"github.com/kailas-cloud/ragd/internal/logger"
)

// Defaults apply when a query carries no override.
type Defaults struct {
	Collection string
	TopK       int
	Threshold  float64
}

// Service runs the embed → KNN → filter → rank pipeline.
type Service struct {
	embed    Embedder
	store    VectorStore
	defaults Defaults
	logger   *zap.Logger
}

// New creates a retrieval service. An empty collection or non-positive TopK falls back to domain constants.
func New(embed Embedder, store VectorStore, defaults Defaults, logger *zap.Logger) *Service {
	if defaults.Collection == "" {
		defaults.Collection = domain.DefaultCollection
	}
	if defaults.TopK <= 0 {
		defaults.TopK = domain.DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embed: embed, store: store, defaults: defaults, logger: logger}
}

// Defaults returns the effective deployment defaults.
func (s *Service) Defaults() Defaults { return s.defaults }

// Retrieve embeds the question and returns the passages whose similarity clears the threshold.
// An empty result is not an error.
func (s *Service) Retrieve(ctx context.Context, q *query.Query) (retrieval.Result, error) {
	collection := q.Collection(s.defaults.Collection)
	k := q.MaxResults(s.defaults.TopK)
	threshold := q.Threshold(s.defaults.Threshold)

	emb, err := s.embed.Embed(ctx, q.Text())
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		return retrieval.Result{}, domain.NewDependencyError("embedding", err)
	}
	domain.UsageFromContext(ctx).Record(emb.TotalTokens)

	matches, err := s.store.SearchKNN(ctx, collection, emb.Embedding, k)
	if err != nil {
		return retrieval.Result{}, domain.NewDependencyError("vector store",
			fmt.Errorf("search %s: %w", collection, err))
	}

	res := Rank(matches, threshold, k)

	logger.FromContextOr(ctx, s.logger).Debug("Retrieval completed",
		zap.String("collection", collection),
		zap.Int("k", k),
		zap.Float64("threshold", threshold),
		zap.Int("candidates", len(matches)),
		zap.Int("kept", res.Len()),
	)

	return res, nil
}

// Rank converts distances to similarities, drops those under threshold and
// numbers the survivors in store order. Store order is kept as-is.
func Rank(matches []retrieval.Match, threshold float64, k int) retrieval.Result {
	docs := make([]retrieval.Document, 0, min(len(matches), k))
	for _, m := range matches {
		if len(docs) == k {
			break
		}
		sim := similarity.FromDistance(m.Distance)
		if sim < threshold {
			continue
		}
		docs = append(docs, retrieval.NewDocument(m.Content, m.Metadata, sim, len(docs)+1))
	}
	return retrieval.NewResult(docs, threshold, k)
}
