package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/ragd/internal/db"
)

func newTestClient(t *testing.T, store *mockStore, model *mockModel, opts ...Option) *Client {
	t.Helper()
	cfg := &clientConfig{embedder: &mockEmbedder{}, model: model}
	for _, o := range opts {
		o.apply(cfg)
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		t.Fatalf("observer: %v", err)
	}
	return wireClient(store, cfg, obs)
}

func entry(content string, distance float64, metadata string) db.SearchEntry {
	fields := map[string]string{db.FieldContent: content}
	if metadata != "" {
		fields[db.FieldMetadata] = metadata
	}
	return db.SearchEntry{Key: content, Distance: distance, Fields: fields}
}

func TestNew_Validation(t *testing.T) {
	emb := WithEmbedder(&mockEmbedder{})
	model := WithLanguageModel(&mockModel{})

	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"no store", []Option{emb, model}, "vector store required"},
		{"empty addr", []Option{WithValkey("", ""), emb, model}, "address required"},
		{"postgres without dsn", []Option{WithPostgres(""), emb, model}, "dsn required"},
		{"no embedder", []Option{WithRedis("localhost:6379", ""), model}, "embedder required"},
		{"no model", []Option{WithQdrant("localhost:6334", ""), emb}, "language model required"},
		{"bad threshold", []Option{WithValkey("localhost:6379", ""), emb, model, WithSimilarityThreshold(1.2)},
			"between 0 and 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.opts...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCreateStore_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "milvus", addrs: []string{"localhost:19530"}}
	if _, err := createStore(cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestQuery_Answered(t *testing.T) {
	store := &mockStore{entries: []db.SearchEntry{
		entry("Small pets may travel in the cabin.", 0.1, `{"page": 12, "source": "pets.pdf"}`),
		entry("Checked baggage allowance is 23kg.", 0.2, ""),
		entry("Unrelated passage.", 0.6, ""),
	}}
	model := &mockModel{text: "  Yes, small pets can travel in the cabin.  "}
	c := newTestClient(t, store, model, WithDefaultCollection("airline"), WithTopK(4))

	ans, err := c.Ask(context.Background(), "Can I bring my cat?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Err != nil || ans.Kind != "" {
		t.Fatalf("unexpected failure: %v (%s)", ans.Err, ans.Kind)
	}
	if ans.Text != "Yes, small pets can travel in the cabin." {
		t.Errorf("text: got %q", ans.Text)
	}
	if ans.ID == "" || ans.Timestamp.IsZero() {
		t.Error("id and timestamp must be set")
	}

	if store.lastQuery.Collection != "airline" || store.lastQuery.K != 4 {
		t.Errorf("store query: got %+v", store.lastQuery)
	}

	if ans.TotalSourcesFound != 2 || len(ans.Sources) != 2 {
		t.Fatalf("sources: got %d found, %d returned, want 2/2", ans.TotalSourcesFound, len(ans.Sources))
	}
	first := ans.Sources[0]
	if first.Rank != 1 || first.Page == nil || *first.Page != 12 || first.Source != "pets.pdf" {
		t.Errorf("first source: %+v", first)
	}
	if math.Abs(first.Similarity-0.9) > 1e-9 {
		t.Errorf("similarity: got %v, want 0.9", first.Similarity)
	}
	if math.Abs(ans.Confidence-0.85) > 1e-9 {
		t.Errorf("confidence: got %v, want 0.85", ans.Confidence)
	}

	if model.calls() != 1 {
		t.Fatalf("model calls: got %d, want 1", model.calls())
	}
	prompt := model.prompts[0]
	for _, want := range []string{"Can I bring my cat?", "Small pets may travel", "Checked baggage"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Unrelated passage") {
		t.Error("prompt contains a passage below the threshold")
	}
}

func TestQuery_ReturnCountCapsSources(t *testing.T) {
	store := &mockStore{entries: []db.SearchEntry{
		entry("a", 0.05, ""), entry("b", 0.1, ""), entry("c", 0.15, ""), entry("d", 0.2, ""),
	}}
	c := newTestClient(t, store, &mockModel{text: "ok"}, WithReturnCount(2))

	ans, err := c.Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ans.Sources) != 2 {
		t.Errorf("sources: got %d, want 2", len(ans.Sources))
	}
	if ans.TotalSourcesFound != 4 {
		t.Errorf("total found: got %d, want 4", ans.TotalSourcesFound)
	}
}

func TestQuery_NoRelevantDocuments(t *testing.T) {
	store := &mockStore{entries: []db.SearchEntry{entry("far away", 0.9, "")}}
	model := &mockModel{text: "should not be called"}
	c := newTestClient(t, store, model)

	ans, err := c.Ask(context.Background(), "anything?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Err != nil {
		t.Fatalf("empty retrieval is not a failure: %v", ans.Err)
	}
	if !strings.HasPrefix(ans.Text, "I couldn't find any relevant information") {
		t.Errorf("text: got %q", ans.Text)
	}
	if ans.Confidence != 0 || len(ans.Sources) != 0 {
		t.Errorf("expected zero confidence and no sources, got %v / %d", ans.Confidence, len(ans.Sources))
	}
	if model.calls() != 0 {
		t.Error("model must not be called without context")
	}
}

func TestQuery_ThresholdOverride(t *testing.T) {
	store := &mockStore{entries: []db.SearchEntry{entry("close enough", 0.45, "")}}
	c := newTestClient(t, store, &mockModel{text: "answer"})

	low := 0.5
	ans, err := c.Query(context.Background(), Question{Text: "q", Threshold: &low})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ans.Sources) != 1 {
		t.Errorf("sources: got %d, want 1 with threshold 0.5", len(ans.Sources))
	}
}

func TestQuery_InvalidQuestion(t *testing.T) {
	model := &mockModel{}
	c := newTestClient(t, &mockStore{}, model)

	for _, text := range []string{"", "   ", strings.Repeat("x", 1001)} {
		_, err := c.Ask(context.Background(), text)
		if !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("text len %d: got %v, want ErrInvalidQuery", len(text), err)
		}
	}
	if model.calls() != 0 {
		t.Error("model must not be called for invalid questions")
	}
}

func TestQuery_FailuresInAnswer(t *testing.T) {
	tests := []struct {
		name     string
		store    *mockStore
		embedder Embedder
		model    *mockModel
		kind     string
		sentinel error
	}{
		{
			name:  "store down",
			store: &mockStore{searchErr: errors.New("connection refused")},
			model: &mockModel{},
			kind:  "dependency_unavailable", sentinel: ErrDependencyUnavailable,
		},
		{
			name:  "embedding down",
			store: &mockStore{},
			embedder: &mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
				return EmbeddingResult{}, errors.New("429")
			}},
			model: &mockModel{},
			kind:  "dependency_unavailable", sentinel: ErrEmbeddingUnavailable,
		},
		{
			name:  "model loading",
			store: &mockStore{entries: []db.SearchEntry{entry("ctx", 0.1, "")}},
			model: &mockModel{err: fmt.Errorf("invoke: %w", ErrModelNotReady)},
			kind:  "model_not_ready", sentinel: ErrModelNotReady,
		},
		{
			name:  "model broken",
			store: &mockStore{entries: []db.SearchEntry{entry("ctx", 0.1, "")}},
			model: &mockModel{err: errors.New("throttled")},
			kind:  "generation_failed", sentinel: ErrGenerationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.embedder != nil {
				opts = append(opts, WithEmbedder(tt.embedder))
			}
			c := newTestClient(t, tt.store, tt.model, opts...)

			ans, err := c.Ask(context.Background(), "q")
			if err != nil {
				t.Fatalf("pipeline failures must not surface as errors: %v", err)
			}
			if ans.Kind != tt.kind {
				t.Errorf("kind: got %q, want %q", ans.Kind, tt.kind)
			}
			if !errors.Is(ans.Err, tt.sentinel) {
				t.Errorf("err %v does not match %v", ans.Err, tt.sentinel)
			}
			if ans.Text == "" || ans.Confidence != 0 || len(ans.Sources) != 0 {
				t.Errorf("unexpected failed answer: %+v", ans)
			}
		})
	}
}

func TestCollections(t *testing.T) {
	store := &mockStore{collections: []string{"faq", "airline_docs_pg"}}
	c := newTestClient(t, store, &mockModel{})

	names, err := c.Collections(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("collections: got %v", names)
	}
}

func TestHealthAndPing(t *testing.T) {
	store := &mockStore{}
	c := newTestClient(t, store, &mockModel{})

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if h := c.Health(context.Background()); h.Status != "healthy" {
		t.Errorf("health: got %+v", h)
	}

	store.pingErr = errors.New("down")
	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}
	if h := c.Health(context.Background()); h.Status != "unhealthy" || h.Checks["database"] != "unhealthy" {
		t.Errorf("health: got %+v", h)
	}

	c.Close()
	if !store.closed {
		t.Error("Close must close the store")
	}
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &mockStore{entries: []db.SearchEntry{entry("ctx", 0.1, "")}}
	c := newTestClient(t, store, &mockModel{text: "a"}, WithPrometheus(reg))

	_, _ = c.Ask(context.Background(), "q")
	_, _ = c.Ask(context.Background(), " ")

	ops := c.obs.metrics.operations
	if got := testutil.ToFloat64(ops.WithLabelValues("query", "ok")); got != 1 {
		t.Errorf("query ok: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("query", "invalid_query")); got != 1 {
		t.Errorf("query invalid: got %v, want 1", got)
	}

	// a second client on the same registry reuses the collectors
	c2 := newTestClient(t, store, &mockModel{text: "a"}, WithPrometheus(reg))
	if c2.obs.metrics.operations != ops {
		t.Error("expected collectors to be reused")
	}
}
