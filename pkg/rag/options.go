package rag

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // valkey, redis, postgres, qdrant
	addrs     []string
	password  string
	dsn       string
	keyPrefix string

	embedder Embedder
	model    LanguageModel

	collection     string
	topK           int
	threshold      *float64
	returnCount    int
	maxTokens      int
	temperature    *float64
	confidenceMode string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey connects to a Valkey instance with valkey-search.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis connects to a Redis 8+ instance with the query engine.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithPostgres connects to PostgreSQL with pgvector using a pgx DSN.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	})
}

// WithQdrant connects to the Qdrant gRPC endpoint (host:port).
func WithQdrant(addr, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "qdrant"
		c.addrs = []string{addr}
		c.password = apiKey
	})
}

// WithKeyPrefix sets the index name prefix for Valkey/Redis. Default: "ragd:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithEmbedder sets the query embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithLanguageModel sets the answer generator. Required.
func WithLanguageModel(m LanguageModel) Option {
	return optionFunc(func(c *clientConfig) {
		c.model = m
	})
}

// WithDefaultCollection sets the collection searched when a question names none.
// Default: "airline_docs_pg".
func WithDefaultCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.collection = name
	})
}

// WithTopK sets how many neighbours are requested from the store. Default: 5.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithSimilarityThreshold sets the default cutoff in [0,1]. Default: 0.7.
func WithSimilarityThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.threshold = &t
	})
}

// WithReturnCount caps the passages used for context, sources and confidence. Default: 3.
func WithReturnCount(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.returnCount = n
	})
}

// WithGeneration sets answer length and sampling temperature. Defaults: 384, 0.5.
func WithGeneration(maxTokens int, temperature float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxTokens = maxTokens
		c.temperature = &temperature
	})
}

// WithCompositeConfidence scores answers on similarity, coverage, length and
// hedging instead of similarity alone.
func WithCompositeConfidence() Option {
	return optionFunc(func(c *clientConfig) {
		c.confidenceMode = "composite"
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
