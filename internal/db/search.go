package db

import "fmt"

// Well-known entry fields shared by every backend.
const (
	FieldContent  = "__content"
	FieldMetadata = "__metadata" // JSON object
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	Collection string
	Vector     []float32
	K          int
}

// Validate rejects queries no backend can run.
func (q *KNNQuery) Validate() error {
	switch {
	case q == nil:
		return fmt.Errorf("%w: nil query", ErrInvalidKNNQuery)
	case q.Collection == "":
		return fmt.Errorf("%w: collection is required", ErrInvalidKNNQuery)
	case len(q.Vector) == 0:
		return fmt.Errorf("%w: vector is required", ErrInvalidKNNQuery)
	case q.K <= 0:
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidKNNQuery, q.K)
	}
	return nil
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Distance is the backend's raw cosine distance, smaller is nearer.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
