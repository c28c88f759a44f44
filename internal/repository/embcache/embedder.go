// Package embcache caches question embeddings in the key-value store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/ragd/internal/db"
	"github.com/kailas-cloud/ragd/internal/domain"
)

// entryFormat is the first byte of every cached vector.
const entryFormat byte = 1

// DefaultCallTimeout bounds a provider call shared by concurrent misses.
const DefaultCallTimeout = 30 * time.Second

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configure the cache.
type Options struct {
	// KeyPrefix should name the embedding model so a model switch never serves
	// stale vectors, e.g. "ragd:emb:text-embedding-3-small:".
	KeyPrefix string
	TTL       time.Duration
	// CallTimeout bounds the shared provider call, which outlives any single
	// caller's cancellation. Zero uses DefaultCallTimeout.
	CallTimeout time.Duration
	Lookups     *prometheus.CounterVec // label "result": hit, miss, shared
	Logger      *zap.Logger
}

// CachedEmbedder serves repeated questions without a provider round trip.
type CachedEmbedder struct {
	inner  domain.Embedder
	store  store
	opts   Options
	group  singleflight.Group
	logger *zap.Logger
}

// New wraps inner with a cache backed by s.
func New(inner domain.Embedder, s store, opts Options) *CachedEmbedder {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &CachedEmbedder{inner: inner, store: s, opts: opts, logger: logger}
}

// Embed returns the cached vector or asks the provider. Concurrent misses for
// the same question share one provider call, detached from any single caller's
// cancellation; each caller still stops waiting when its own ctx is done.
// Only the caller that started the call reports tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)

	if vec, ok := c.load(ctx, key); ok {
		c.count("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	leader := false
	ch := c.group.DoChan(key, func() (any, error) {
		leader = true
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.CallTimeout)
		defer cancel()

		res, err := c.inner.Embed(callCtx, text)
		if err != nil {
			return nil, err
		}
		c.save(callCtx, key, res.Embedding)
		return res, nil
	})

	var out singleflight.Result
	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed question: %w", context.Cause(ctx))
	case out = <-ch:
	}
	if out.Err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed question: %w", out.Err)
	}

	res, _ := out.Val.(domain.EmbeddingResult)
	if !leader {
		c.count("shared")
		return domain.EmbeddingResult{Embedding: res.Embedding}, nil
	}
	c.count("miss")
	return res, nil
}

// key hashes the question with whitespace runs collapsed.
func (c *CachedEmbedder) key(text string) string {
	h := sha256.Sum256([]byte(strings.Join(strings.Fields(text), " ")))
	return c.opts.KeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) count(result string) {
	if c.opts.Lookups != nil {
		c.opts.Lookups.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) load(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("discarding cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, encodeVector(vec), c.opts.TTL); err != nil {
		c.logger.Warn("embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 1+len(v)*4)
	buf[0] = entryFormat
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[1+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 5 || data[0] != entryFormat || (len(data)-1)%4 != 0 {
		return nil, fmt.Errorf("malformed entry of %d bytes", len(data))
	}
	body := data[1:]
	vec := make([]float32, len(body)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return vec, nil
}
