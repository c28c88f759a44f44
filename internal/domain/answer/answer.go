// Package answer holds the terminal value of one question-answering request.
package answer

import (
	"errors"
	"time"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/domain/retrieval"
	"github.com/kailas-cloud/ragd/internal/domain/similarity"
)

// NoRelevantInformation is returned when no passage clears the similarity threshold.
const NoRelevantInformation = "I couldn't find any relevant information to answer your question. " +
	"Please try rephrasing or ask about a different topic."

// Kind classifies a failed result for the boundary layer.
type Kind string

// Failure kinds. KindNone marks a successful result.
const (
	KindNone                  Kind = ""
	KindInvalidQuery          Kind = "invalid_query"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindModelNotReady         Kind = "model_not_ready"
	KindGenerationFailed      Kind = "generation_failed"
	KindInternal              Kind = "internal_error"
)

// Classify maps an error chain onto a failure kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, domain.ErrInvalidQuery):
		return KindInvalidQuery
	case errors.Is(err, domain.ErrModelNotReady):
		return KindModelNotReady
	case errors.Is(err, domain.ErrGenerationFailed):
		return KindGenerationFailed
	case errors.Is(err, domain.ErrDependencyUnavailable),
		errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrCollectionNotFound):
		return KindDependencyUnavailable
	default:
		return KindInternal
	}
}

// Message is the human-readable answer text for a failed result.
func (k Kind) Message() string {
	switch k {
	case KindNone:
		return ""
	case KindInvalidQuery:
		return "The question could not be processed. Please check the request and try again."
	case KindDependencyUnavailable:
		return "The knowledge base is temporarily unavailable. Please try again later."
	case KindModelNotReady:
		return "The language model is still starting up. Please try again shortly."
	case KindGenerationFailed:
		return "An answer could not be generated for this question. Please try again later."
	default:
		return "An internal error occurred while processing the question."
	}
}

// Result is an answered (or failed) question. Immutable after construction.
type Result struct {
	id         string
	text       string
	confidence float64
	sources    retrieval.Result
	query      string
	elapsed    time.Duration
	timestamp  time.Time
	err        error
}

// New creates a successful result. sources is the same subset used for context and confidence.
func New(
	id, text string, confidence float64, sources retrieval.Result,
	query string, elapsed time.Duration, timestamp time.Time,
) Result {
	return Result{
		id: id, text: text, confidence: confidence, sources: sources,
		query: query, elapsed: elapsed, timestamp: timestamp,
	}
}

// Failed creates a result carrying a human-readable message, zero confidence and no sources.
func Failed(id, message, query string, err error, elapsed time.Duration, timestamp time.Time) Result {
	return Result{
		id: id, text: message, query: query,
		elapsed: elapsed, timestamp: timestamp, err: err,
	}
}

// ID returns the request identifier.
func (r Result) ID() string { return r.id }

// Text returns the answer, or the error message for failed results.
func (r Result) Text() string { return r.text }

// Confidence returns the [0,1] trust estimate.
func (r Result) Confidence() float64 { return r.confidence }

// Sources returns the documents the answer was grounded on.
func (r Result) Sources() retrieval.Result { return r.sources }

// Query returns the original question text.
func (r Result) Query() string { return r.query }

// Elapsed returns wall-clock processing time.
func (r Result) Elapsed() time.Duration { return r.elapsed }

// ProcessingTimeMS returns elapsed milliseconds rounded to 2 decimals.
func (r Result) ProcessingTimeMS() float64 {
	return similarity.Round(float64(r.elapsed)/float64(time.Millisecond), 2)
}

// Timestamp returns when the result was produced.
func (r Result) Timestamp() time.Time { return r.timestamp }

// Err returns the internal failure, nil on success.
func (r Result) Err() error { return r.err }

// Kind classifies the internal failure.
func (r Result) Kind() Kind { return Classify(r.err) }

// Failed reports whether the pipeline failed.
func (r Result) Failed() bool { return r.err != nil }
