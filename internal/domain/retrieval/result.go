package retrieval

// Result is the ordered, threshold-filtered output of one retrieval.
// Every document's similarity is at or above Threshold and len(Documents) <= Requested.
type Result struct {
	documents []Document
	threshold float64
	requested int
	found     int
}

// NewResult wraps ranked documents. found is the kept count before any display truncation.
func NewResult(documents []Document, threshold float64, requested int) Result {
	return Result{
		documents: documents,
		threshold: threshold,
		requested: requested,
		found:     len(documents),
	}
}

// Documents returns kept documents, most similar first.
func (r Result) Documents() []Document { return r.documents }

// Threshold returns the similarity cutoff that was applied.
func (r Result) Threshold() float64 { return r.threshold }

// Requested returns the number of neighbours asked of the store.
func (r Result) Requested() int { return r.requested }

// Found returns how many documents cleared the threshold before Top truncation.
func (r Result) Found() int { return r.found }

// Len returns the number of documents in this view.
func (r Result) Len() int { return len(r.documents) }

// IsEmpty reports whether no document cleared the threshold.
func (r Result) IsEmpty() bool { return len(r.documents) == 0 }

// Top returns a view limited to the first limit documents. Found is preserved.
// A non-positive limit returns the result unchanged.
func (r Result) Top(limit int) Result {
	if limit <= 0 || limit >= len(r.documents) {
		return r
	}
	r.documents = r.documents[:limit:limit]
	return r
}

// Similarities returns the similarity of each document in order.
func (r Result) Similarities() []float64 {
	out := make([]float64, len(r.documents))
	for i := range r.documents {
		out[i] = r.documents[i].similarity
	}
	return out
}
