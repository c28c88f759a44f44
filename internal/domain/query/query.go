package query

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// Query is a validated question. Zero-valued overrides fall back to deployment defaults.
type Query struct {
	text         string
	collection   string
	maxResults   int
	threshold    float64
	hasThreshold bool
}

// New validates a question and its optional overrides.
// maxResults <= 0 means "use default"; values above domain.MaxTopK are clamped.
// A nil threshold means "use default".
func New(text, collection string, maxResults int, threshold *float64) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, fmt.Errorf("%w: query cannot be empty", domain.ErrInvalidQuery)
	}
	if utf8.RuneCountInString(text) > domain.MaxQueryLength {
		return Query{}, fmt.Errorf("%w: query is too long (maximum %d characters)",
			domain.ErrInvalidQuery, domain.MaxQueryLength)
	}
	if maxResults < 0 {
		maxResults = 0
	}
	if maxResults > domain.MaxTopK {
		maxResults = domain.MaxTopK
	}

	q := Query{
		text:       text,
		collection: strings.TrimSpace(collection),
		maxResults: maxResults,
	}
	if threshold != nil {
		if *threshold < 0 || *threshold > 1 {
			return Query{}, fmt.Errorf("%w: similarity_threshold must be between 0 and 1", domain.ErrInvalidQuery)
		}
		q.threshold = *threshold
		q.hasThreshold = true
	}
	return q, nil
}

// Text returns the trimmed question text.
func (q Query) Text() string { return q.text }

// Collection returns the requested collection, or def when none was given.
func (q Query) Collection(def string) string {
	if q.collection == "" {
		return def
	}
	return q.collection
}

// MaxResults returns the requested result cap, or def when none was given.
func (q Query) MaxResults(def int) int {
	if q.maxResults == 0 {
		return def
	}
	return q.maxResults
}

// Threshold returns the requested similarity cutoff, or def when none was given.
func (q Query) Threshold(def float64) float64 {
	if !q.hasThreshold {
		return def
	}
	return q.threshold
}
