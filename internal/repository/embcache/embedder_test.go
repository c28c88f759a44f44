package embcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/ragd/internal/db"
	"github.com/kailas-cloud/ragd/internal/domain"
)

func TestEmbed_MissStoresVector(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCache(t, inner)

	var setKey string
	var setTTL time.Duration
	var stored []byte
	ms.setFn = func(_ context.Context, key string, value []byte, ttl time.Duration) error {
		setKey, setTTL, stored = key, ttl, value
		return nil
	}

	res, err := ce.Embed(context.Background(), "what is the baggage allowance")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if res.TotalTokens != 10 || inner.callCount() != 1 {
		t.Errorf("expected one paid provider call, got %+v calls=%d", res, inner.callCount())
	}
	if !strings.HasPrefix(setKey, testPrefix) || len(setKey) != len(testPrefix)+64 {
		t.Errorf("unexpected cache key %q", setKey)
	}
	if setTTL != time.Hour {
		t.Errorf("ttl = %v, want 1h", setTTL)
	}
	if len(stored) != 1+12 || stored[0] != entryFormat {
		t.Errorf("stored entry: %d bytes, format %v", len(stored), stored[0])
	}
}

func TestEmbed_HitIsFree(t *testing.T) {
	inner := &mockEmbedder{}
	ce, ms := newTestCache(t, inner)
	ms.getFn = func(context.Context, string) ([]byte, error) {
		return encodeVector([]float32{0.5, -0.25}), nil
	}
	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		t.Error("SetWithTTL must not be called on a hit")
		return nil
	}

	res, err := ce.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.callCount() != 0 {
		t.Error("provider called on a hit")
	}
	if res.Dimensions() != 2 || res.Embedding[1] != -0.25 || res.TotalTokens != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestEmbed_KeyIgnoresWhitespaceRuns(t *testing.T) {
	ce, _ := newTestCache(t, &mockEmbedder{})
	a := ce.key("can I bring\ta pet?")
	b := ce.key("can  I bring a   pet?")
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if a == ce.key("can I bring a cat?") {
		t.Error("different questions share a key")
	}
}

func TestEmbed_MalformedEntryFallsThrough(t *testing.T) {
	tests := []struct {
		name  string
		entry []byte
	}{
		{"truncated", []byte{entryFormat, 1, 2, 3}},
		{"unknown format", append([]byte{9}, encodeVector([]float32{1})[1:]...)},
		{"empty", []byte{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
			ce, ms := newTestCache(t, inner)
			ms.getFn = func(context.Context, string) ([]byte, error) { return tc.entry, nil }

			if _, err := ce.Embed(context.Background(), "q"); err != nil {
				t.Fatalf("Embed: %v", err)
			}
			if inner.callCount() != 1 {
				t.Errorf("expected provider call, got %d", inner.callCount())
			}
		})
	}
}

func TestEmbed_StoreErrorsAreNotFatal(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCache(t, inner)
	ms.getFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("timeout") }
	ms.setFn = func(context.Context, string, []byte, time.Duration) error { return errors.New("timeout") }

	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("cache failures must not fail Embed: %v", err)
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	cause := errors.New("provider down")
	inner := &mockEmbedder{err: cause}
	ce, ms := newTestCache(t, inner)
	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		t.Error("nothing to cache on failure")
		return nil
	}

	if _, err := ce.Embed(context.Background(), "q"); !errors.Is(err, cause) {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
}

func TestEmbed_ConcurrentMissesShareOneCall(t *testing.T) {
	const callers = 5
	inner := &mockEmbedder{
		result:  domain.EmbeddingResult{Embedding: []float32{1, 2}, TotalTokens: 7},
		release: make(chan struct{}),
	}
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_shared_total"}, []string{"result"})
	ce := New(inner, &mockKVStore{}, Options{KeyPrefix: testPrefix, TTL: time.Minute, Lookups: lookups})

	var wg sync.WaitGroup
	tokens := make([]int, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ce.Embed(context.Background(), "popular question")
			if err != nil {
				t.Errorf("Embed: %v", err)
				return
			}
			tokens[i] = res.TotalTokens
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	if inner.callCount() != 1 {
		t.Fatalf("provider calls = %d, want 1", inner.callCount())
	}
	sum := 0
	for _, n := range tokens {
		sum += n
	}
	if sum != 7 {
		t.Errorf("tokens reported across callers = %d, want 7 (only the paying caller)", sum)
	}
	if got := testutil.ToFloat64(lookups.WithLabelValues("shared")); got != callers-1 {
		t.Errorf("shared = %v, want %d", got, callers-1)
	}
}

func TestEmbed_CanceledLeaderDoesNotFailFollowers(t *testing.T) {
	inner := &mockEmbedder{
		result:  domain.EmbeddingResult{Embedding: []float32{0.5, 0.25}, TotalTokens: 3},
		release: make(chan struct{}),
	}
	ce, _ := newTestCache(t, inner)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := ce.Embed(leaderCtx, "shared question")
		leaderErr <- err
	}()
	waitForCalls(t, inner, 1)

	type outcome struct {
		res domain.EmbeddingResult
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := ce.Embed(context.Background(), "shared question")
		follower <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-leaderErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("canceled caller: got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("canceled caller kept waiting on the shared call")
	}

	close(inner.release)
	got := <-follower
	if got.err != nil {
		t.Fatalf("live caller failed: %v", got.err)
	}
	if len(got.res.Embedding) != 2 {
		t.Errorf("live caller vector = %v", got.res.Embedding)
	}
	if inner.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", inner.callCount())
	}
}

func TestEmbed_SharedCallIsBounded(t *testing.T) {
	inner := &mockEmbedder{release: make(chan struct{})}
	defer close(inner.release)
	ce := New(inner, &mockKVStore{}, Options{KeyPrefix: testPrefix, CallTimeout: 20 * time.Millisecond})

	_, err := ce.Embed(context.Background(), "stuck provider")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func waitForCalls(t *testing.T, m *mockEmbedder, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for m.callCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("provider calls = %d, want %d", m.callCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEmbed_CountsHitsAndMisses(t *testing.T) {
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	hit := false
	store := &mockKVStore{getFn: func(context.Context, string) ([]byte, error) {
		if hit {
			return encodeVector([]float32{1}), nil
		}
		return nil, db.ErrKeyNotFound
	}}
	ce := New(&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}},
		store, Options{KeyPrefix: "p:", TTL: time.Minute, Lookups: lookups})

	_, _ = ce.Embed(context.Background(), "q")
	hit = true
	_, _ = ce.Embed(context.Background(), "q")

	if got := testutil.ToFloat64(lookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss = %v", got)
	}
	if got := testutil.ToFloat64(lookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("hit = %v", got)
	}
}

func TestDecodeVector_RoundTrip(t *testing.T) {
	in := []float32{0.1, -2, 3.5}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decodeVector: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("mismatch at %d: %v != %v", i, in[i], out[i])
		}
	}
}
