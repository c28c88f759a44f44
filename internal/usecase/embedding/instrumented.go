// Package embedding decorates question embedders with logging and error classification.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/logger"
)

// DefaultSlowThreshold marks embedding calls worth a warning.
const DefaultSlowThreshold = 2 * time.Second

// InstrumentedEmbedder logs each embedding call and maps every failure onto
// domain.ErrEmbeddingUnavailable. Provider metrics live in the transport.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	fields []zap.Field
	slow   time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewInstrumentedEmbedder wraps inner. provider and model are attached to every log line.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:  inner,
		fields: []zap.Field{zap.String("provider", provider), zap.String("model", model)},
		slow:   DefaultSlowThreshold,
		logger: logger,
		now:    time.Now,
	}
}

// WithSlowThreshold overrides the duration above which successful calls log a warning.
func (p *InstrumentedEmbedder) WithSlowThreshold(d time.Duration) *InstrumentedEmbedder {
	p.slow = d
	return p
}

// Embed delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	log := logger.FromContextOr(ctx, p.logger).With(p.fields...)
	start := p.now()

	result, err := p.inner.Embed(ctx, text)
	if err == nil && len(result.Embedding) == 0 {
		err = fmt.Errorf("empty vector: %w", domain.ErrEmbeddingUnavailable)
	}
	took := p.now().Sub(start)

	if err != nil {
		// the caller gave up; not the provider's fault
		if ctx.Err() != nil {
			log.Warn("embedding abandoned", zap.Duration("duration", took), zap.Error(err))
		} else {
			log.Error("embedding failed", zap.Duration("duration", took), zap.Error(err))
		}
		return domain.EmbeddingResult{}, classify(err)
	}

	fields := []zap.Field{
		zap.Duration("duration", took),
		zap.Int("dimensions", result.Dimensions()),
		zap.Int("total_tokens", result.TotalTokens),
	}
	if p.slow > 0 && took >= p.slow {
		log.Warn("slow embedding", fields...)
	} else {
		log.Debug("embedding done", fields...)
	}
	return result, nil
}

func classify(err error) error {
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return fmt.Errorf("embed: %w", err)
	}
	return fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingUnavailable, err)
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
