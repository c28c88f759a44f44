package rag

import "github.com/kailas-cloud/ragd/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery          = domain.ErrInvalidQuery
	ErrDependencyUnavailable = domain.ErrDependencyUnavailable
	ErrEmbeddingUnavailable  = domain.ErrEmbeddingUnavailable
	ErrModelNotReady         = domain.ErrModelNotReady
	ErrGenerationFailed      = domain.ErrGenerationFailed
	ErrCollectionNotFound    = domain.ErrCollectionNotFound
)
