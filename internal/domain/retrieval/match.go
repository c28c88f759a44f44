package retrieval

// Match is a raw vector-store hit: a passage and its distance to the query vector.
// Smaller distances are nearer.
type Match struct {
	Content  string
	Metadata map[string]any
	Distance float64
}
