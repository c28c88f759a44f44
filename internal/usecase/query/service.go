// Package query orchestrates retrieval, synthesis and scoring for one question.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/domain/answer"
	"github.com/kailas-cloud/ragd/internal/domain/confidence"
	"github.com/kailas-cloud/ragd/internal/domain/query"
	"github.com/kailas-cloud/ragd/internal/logger"
	"github.com/kailas-cloud/ragd/internal/metrics"
	"github.com/kailas-cloud/ragd/internal/usecase/synthesis"
)

// Service is the single boundary that turns every pipeline failure into an answer.Result.
type Service struct {
	retriever   Retriever
	synthesizer Synthesizer
	scorer      confidence.Scorer
	returnCount int
	logger      *zap.Logger

	now   func() time.Time
	newID func() string
}

// New creates the orchestrator. returnCount caps the documents used for context,
// sources and confidence; non-positive uses domain.DefaultReturnCount.
func New(
	retriever Retriever, synthesizer Synthesizer,
	scorer confidence.Scorer, returnCount int, logger *zap.Logger,
) *Service {
	if returnCount <= 0 {
		returnCount = domain.DefaultReturnCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		retriever:   retriever,
		synthesizer: synthesizer,
		scorer:      scorer,
		returnCount: returnCount,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Handle answers q. It never returns an error: failures come back as a failed Result
// with zero confidence and no sources.
func (s *Service) Handle(ctx context.Context, q *query.Query) (res answer.Result) {
	start := s.now()
	id := s.newID()
	ctx, log := logger.With(ctx, s.logger, zap.String("query_id", id))

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic in query pipeline: %v", p)
			log.Error("Query pipeline panicked", zap.Any("panic", p))
			res = s.fail(id, q, err, start)
		}
		s.observe(&res)
	}()

	if q == nil {
		return s.fail(id, nil, fmt.Errorf("%w: nil query", domain.ErrInvalidQuery), start)
	}

	retrieved, err := s.retriever.Retrieve(ctx, q)
	if err != nil {
		log.Error("Retrieval failed", zap.Error(err))
		return s.fail(id, q, fmt.Errorf("retrieve: %w", err), start)
	}
	metrics.RetrievedDocuments.Observe(float64(retrieved.Found()))

	if retrieved.IsEmpty() {
		log.Info("No documents cleared the similarity threshold",
			zap.Float64("threshold", retrieved.Threshold()))
		return answer.New(id, answer.NoRelevantInformation, 0, retrieved,
			q.Text(), s.now().Sub(start), s.now())
	}

	// one subset for context, sources and confidence
	used := retrieved.Top(s.returnCount)

	text, err := s.synthesizer.Synthesize(ctx, q.Text(), synthesis.Assemble(used, 0))
	if err != nil {
		log.Error("Synthesis failed", zap.Error(err))
		return s.fail(id, q, fmt.Errorf("synthesize: %w", err), start)
	}

	conf := s.scorer.Score(used.Similarities(), text)
	log.Info("Query answered",
		zap.Int("found", used.Found()),
		zap.Int("used", used.Len()),
		zap.Float64("confidence", conf),
	)
	return answer.New(id, text, conf, used, q.Text(), s.now().Sub(start), s.now())
}

func (s *Service) fail(id string, q *query.Query, err error, start time.Time) answer.Result {
	text := ""
	if q != nil {
		text = q.Text()
	}
	kind := answer.Classify(err)
	return answer.Failed(id, kind.Message(), text, err, s.now().Sub(start), s.now())
}

func (s *Service) observe(res *answer.Result) {
	metrics.QueryDuration.Observe(res.Elapsed().Seconds())
	sources := res.Sources()
	switch {
	case res.Failed():
		metrics.QueriesTotal.WithLabelValues(string(res.Kind())).Inc()
	case sources.IsEmpty():
		metrics.QueriesTotal.WithLabelValues("no_results").Inc()
	default:
		metrics.QueriesTotal.WithLabelValues("answered").Inc()
		metrics.QueryConfidence.Observe(res.Confidence())
	}
}
