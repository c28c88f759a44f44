package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/ragd/internal/db"
	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/domain/retrieval"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	ListCollections(ctx context.Context) ([]string, error)
}

// Repo implements usecase/retrieval.VectorStore and usecase/collection.Repository.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SearchKNN returns raw matches for a collection, nearest first.
func (r *Repo) SearchKNN(ctx context.Context, collection string, vector []float32, k int) ([]retrieval.Match, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		Collection: collection,
		Vector:     vector,
		K:          k,
	})
	if err != nil {
		if errors.Is(err, db.ErrCollectionNotFound) {
			return nil, fmt.Errorf("search knn %s: %w", collection, domain.ErrCollectionNotFound)
		}
		return nil, fmt.Errorf("search knn %s: %w", collection, err)
	}

	matches := make([]retrieval.Match, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		matches = append(matches, retrieval.Match{
			Content:  e.Fields[db.FieldContent],
			Metadata: parseMetadata(e.Key, e.Fields),
			Distance: e.Distance,
		})
	}
	return matches, nil
}

// ListCollections proxies collection discovery from the store.
func (r *Repo) ListCollections(ctx context.Context) ([]string, error) {
	names, err := r.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// parseMetadata decodes the JSON metadata field. Extra flat fields (hash-stored
// documents) are merged in; the entry key is exposed as "id" unless already set.
func parseMetadata(key string, fields map[string]string) map[string]any {
	md := map[string]any{}
	if raw := fields[db.FieldMetadata]; raw != "" {
		// malformed metadata degrades to flat fields only
		_ = json.Unmarshal([]byte(raw), &md)
		if md == nil {
			md = map[string]any{}
		}
	}
	for k, v := range fields {
		if k == db.FieldContent || k == db.FieldMetadata {
			continue
		}
		if _, exists := md[k]; !exists {
			md[k] = v
		}
	}
	if _, exists := md["id"]; !exists && key != "" {
		md["id"] = key
	}
	return md
}
