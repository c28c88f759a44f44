package db

import "errors"

var (
	ErrKeyNotFound        = errors.New("db: key not found")
	ErrCollectionNotFound = errors.New("db: collection not found")
	ErrInvalidKNNQuery    = errors.New("db: invalid knn query")
)

// Operation names carried by Error, one per backend call.
const (
	OpPing = "PING"

	// rueidis
	OpSearch = "FT.SEARCH"
	OpList   = "FT._LIST"
	OpGet    = "GET"
	OpSet    = "SET"

	OpPgSearch    = "pgvector.search"
	OpPgList      = "pgvector.collections"
	OpQdrantQuery = "qdrant.search"
	OpQdrantList  = "qdrant.collections"
)

// Error records which backend operation failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
