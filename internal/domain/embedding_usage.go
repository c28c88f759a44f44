package domain

import "context"

type questionUsageKey struct{}

// EmbeddingUsage is the embedding cost of answering one question. The HTTP
// handler attaches it to the request context, retrieval records into it and
// the handler reports it in a response header. One question, one writer.
type EmbeddingUsage struct {
	Tokens int
	Calls  int // embed calls, cache hits included
}

// NewContextWithUsage attaches a fresh usage record to ctx.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, questionUsageKey{}, u), u
}

// UsageFromContext returns the attached record or nil.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(questionUsageKey{}).(*EmbeddingUsage)
	return u
}

// Record counts one embed call. Safe on a nil record.
func (u *EmbeddingUsage) Record(tokens int) {
	if u == nil {
		return
	}
	u.Calls++
	u.Tokens += tokens
}

// Embedded reports whether the question reached the embedder.
func (u *EmbeddingUsage) Embedded() bool { return u != nil && u.Calls > 0 }
