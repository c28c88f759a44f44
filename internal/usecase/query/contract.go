package query

import (
	"context"

	"github.com/kailas-cloud/ragd/internal/domain/query"
	"github.com/kailas-cloud/ragd/internal/domain/retrieval"
)

// Retriever finds passages for a question.
type Retriever interface {
	Retrieve(ctx context.Context, q *query.Query) (retrieval.Result, error)
}

// Synthesizer answers a question from assembled context.
type Synthesizer interface {
	Synthesize(ctx context.Context, question, contextText string) (string, error)
}
