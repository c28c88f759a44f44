package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery signals a query rejected before it reaches the pipeline.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrDependencyUnavailable signals an unreachable embedding provider or vector store.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrModelNotReady signals a transient language model cold start.
	ErrModelNotReady = errors.New("model not ready")
	// ErrGenerationFailed signals a terminal language model failure for one request.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrCollectionNotFound signals a vector collection the store does not know.
	ErrCollectionNotFound = errors.New("collection not found")
)

// DependencyError names the collaborator that failed and keeps the driver cause.
// errors.Is matches both ErrDependencyUnavailable and the wrapped cause.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Dependency, ErrDependencyUnavailable.Error(), e.Err)
}

func (e *DependencyError) Unwrap() []error { return []error{ErrDependencyUnavailable, e.Err} }

// NewDependencyError creates a dependency failure for the named collaborator.
func NewDependencyError(dependency string, err error) error {
	return &DependencyError{Dependency: dependency, Err: err}
}
