package rag

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/ragd/internal/db"
)

// --- db.Store mock ---

type mockStore struct {
	mu          sync.Mutex
	entries     []db.SearchEntry
	collections []string
	searchErr   error
	pingErr     error
	lastQuery   *db.KNNQuery
	closed      bool
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	entries := m.entries
	if len(entries) > q.K {
		entries = entries[:q.K]
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func (m *mockStore) ListCollections(context.Context) ([]string, error) {
	return m.collections, m.searchErr
}

func (m *mockStore) Close() { m.closed = true }

func (m *mockStore) WaitForReady(context.Context, time.Duration) error { return m.pingErr }

// --- Embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	if m.fn == nil {
		return EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 3}, nil
	}
	return m.fn(ctx, text)
}

// --- LanguageModel mock ---

type mockModel struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (m *mockModel) Generate(_ context.Context, req GenerationRequest) (GenerationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, req.Prompt)
	if m.err != nil {
		return GenerationResult{}, m.err
	}
	return GenerationResult{Text: m.text, CompletionTokens: 4}, nil
}

func (m *mockModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
