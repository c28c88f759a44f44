package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/ragd/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn       func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	listCollectionsFn func(ctx context.Context) ([]string, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) ListCollections(ctx context.Context) ([]string, error) {
	if m.listCollectionsFn != nil {
		return m.listCollectionsFn(ctx)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}
