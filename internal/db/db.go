package db

import (
	"context"
	"time"
)

// Store is the vector store facade every backend implements.
type Store interface {
	Pinger
	Searcher
	CollectionLister
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher runs nearest-neighbour queries. Entries come back nearest first.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// CollectionLister enumerates searchable collections.
type CollectionLister interface {
	ListCollections(ctx context.Context) ([]string, error)
}

// KVStore backs the question embedding cache. Only the rueidis backend implements it.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
