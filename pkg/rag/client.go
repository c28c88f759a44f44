package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/db"
	dbPostgres "github.com/kailas-cloud/ragd/internal/db/postgres"
	dbQdrant "github.com/kailas-cloud/ragd/internal/db/qdrant"
	dbRedis "github.com/kailas-cloud/ragd/internal/db/redis"
	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/domain/answer"
	"github.com/kailas-cloud/ragd/internal/domain/confidence"
	"github.com/kailas-cloud/ragd/internal/domain/query"
	searchrepo "github.com/kailas-cloud/ragd/internal/repository/search"
	collectionuc "github.com/kailas-cloud/ragd/internal/usecase/collection"
	healthuc "github.com/kailas-cloud/ragd/internal/usecase/health"
	queryuc "github.com/kailas-cloud/ragd/internal/usecase/query"
	retrievaluc "github.com/kailas-cloud/ragd/internal/usecase/retrieval"
	"github.com/kailas-cloud/ragd/internal/usecase/synthesis"
)

const defaultReadinessTimeout = 10 * time.Second

// Внутренние интерфейсы для подмены в тестах.
type queryUseCase interface {
	Handle(ctx context.Context, q *query.Query) answer.Result
}

type collectionUseCase interface {
	List(ctx context.Context) (collectionuc.Listing, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the embeddable question answering entry point.
type Client struct {
	store     db.Store
	querySvc  queryUseCase
	collSvc   collectionUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and connects to the vector store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("rag: vector store not ready: %w", err)
	}

	return wireClient(store, cfg, obs), nil
}

func (c *clientConfig) validate() error {
	switch c.driver {
	case "":
		return errors.New("rag: vector store required (use WithValkey, WithRedis, WithPostgres or WithQdrant)")
	case "postgres":
		if c.dsn == "" {
			return errors.New("rag: postgres dsn required")
		}
	default:
		if len(c.addrs) == 0 || c.addrs[0] == "" {
			return errors.New("rag: database address required")
		}
	}
	if c.embedder == nil {
		return errors.New("rag: embedder required (use WithEmbedder)")
	}
	if c.model == nil {
		return errors.New("rag: language model required (use WithLanguageModel)")
	}
	if c.threshold != nil && (*c.threshold < 0 || *c.threshold > 1) {
		return fmt.Errorf("rag: similarity threshold must be between 0 and 1, got %v", *c.threshold)
	}
	return nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		prefix := cfg.keyPrefix
		if prefix == "" {
			prefix = "ragd:"
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.addrs,
			Password:  cfg.password,
			KeyPrefix: prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("rag: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	case "postgres":
		s, err := dbPostgres.NewStore(dbPostgres.Config{DSN: cfg.dsn})
		if err != nil {
			return nil, fmt.Errorf("rag: create postgres store: %w", err)
		}
		return s, nil
	case "qdrant":
		s, err := dbQdrant.NewStore(dbQdrant.Config{Addr: cfg.addrs[0], APIKey: cfg.password})
		if err != nil {
			return nil, fmt.Errorf("rag: create qdrant store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("rag: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	threshold := domain.DefaultThreshold
	if cfg.threshold != nil {
		threshold = *cfg.threshold
	}
	temperature := domain.DefaultTemperature
	if cfg.temperature != nil {
		temperature = *cfg.temperature
	}
	maxTokens := cfg.maxTokens
	if maxTokens <= 0 {
		maxTokens = domain.DefaultMaxTokens
	}

	searchRepo := searchrepo.New(store)
	embed := &embedderAdapter{inner: cfg.embedder}
	model := &modelAdapter{inner: cfg.model}
	nop := zap.NewNop()

	retriever := retrievaluc.New(embed, searchRepo, retrievaluc.Defaults{
		Collection: cfg.collection,
		TopK:       cfg.topK,
		Threshold:  threshold,
	}, nop)
	synthesizer := synthesis.New(model, synthesis.Options{
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}, nop)
	querySvc := queryuc.New(
		retriever, synthesizer,
		confidence.NewScorer(confidence.Mode(cfg.confidenceMode)),
		cfg.returnCount, nop,
	)

	return &Client{
		store:     store,
		querySvc:  querySvc,
		collSvc:   collectionuc.New(searchRepo, cfg.collection),
		healthSvc: healthuc.New(store, nil, nil, nil),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks vector store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, statusOf(err), err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Ask answers a question using the client defaults.
func (c *Client) Ask(ctx context.Context, text string) (Answer, error) {
	return c.Query(ctx, Question{Text: text})
}

// Query answers a question. The error is non-nil only when the question is
// rejected (ErrInvalidQuery); pipeline failures are reported in Answer.Err.
func (c *Client) Query(ctx context.Context, q Question) (Answer, error) {
	start := time.Now()

	dq, err := query.New(q.Text, q.Collection, q.MaxResults, q.Threshold)
	if err != nil {
		c.obs.observe("query", start, string(answer.KindInvalidQuery), err)
		return Answer{}, fmt.Errorf("rag: %w", err)
	}

	res := c.querySvc.Handle(ctx, &dq)

	status := "ok"
	if res.Failed() {
		status = string(res.Kind())
	}
	c.obs.observe("query", start, status, res.Err())

	return answerFromResult(res), nil
}

// Collections lists the queryable collections, default first when present.
func (c *Client) Collections(ctx context.Context) (names []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("collections", start, statusOf(err), err) }()

	listing, err := c.collSvc.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("collections: %w", err)
	}
	return listing.Collections, nil
}

// Health checks the vector store. Embedding and generation providers are
// caller-owned and not probed.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

func answerFromResult(res answer.Result) Answer {
	docs := res.Sources().Documents()
	sources := make([]Source, 0, len(docs))
	for _, d := range docs {
		s := Source{
			Content:    d.Content(),
			Metadata:   d.Metadata(),
			Similarity: d.Similarity(),
			Rank:       d.Rank(),
			Source:     d.Source(),
		}
		if page, ok := d.Page(); ok {
			s.Page = &page
		}
		sources = append(sources, s)
	}
	return Answer{
		ID:                res.ID(),
		Text:              res.Text(),
		Confidence:        res.Confidence(),
		Sources:           sources,
		Query:             res.Query(),
		TotalSourcesFound: res.Sources().Found(),
		Elapsed:           res.Elapsed(),
		Timestamp:         res.Timestamp(),
		Kind:              string(res.Kind()),
		Err:               res.Err(),
	}
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(r.Embedding) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty embedding", domain.ErrEmbeddingUnavailable)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// modelAdapter wraps public LanguageModel to satisfy the synthesis contract.
type modelAdapter struct {
	inner LanguageModel
}

func (a *modelAdapter) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	r, err := a.inner.Generate(ctx, GenerationRequest{
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}
	return domain.GenerationResult{
		Text:             r.Text,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
	}, nil
}
