package collection

import (
	"context"
	"fmt"
	"slices"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// Listing is the set of queryable collections.
type Listing struct {
	Collections []string
	Default     string
}

// Service reports available collections.
type Service struct {
	repo              Repository
	defaultCollection string
}

// New creates a collection service.
func New(repo Repository, defaultCollection string) *Service {
	if defaultCollection == "" {
		defaultCollection = domain.DefaultCollection
	}
	return &Service{repo: repo, defaultCollection: defaultCollection}
}

// List returns known collections, sorted, always including the default one.
func (s *Service) List(ctx context.Context) (Listing, error) {
	names, err := s.repo.ListCollections(ctx)
	if err != nil {
		return Listing{}, domain.NewDependencyError("vector store", fmt.Errorf("list collections: %w", err))
	}

	out := make([]string, 0, len(names)+1)
	out = append(out, s.defaultCollection)
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)

	return Listing{Collections: out, Default: s.defaultCollection}, nil
}
