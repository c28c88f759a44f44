package synthesis

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/ragd/internal/domain/retrieval"
)

// NoContextSentinel stands in for the context when nothing was retrieved.
const NoContextSentinel = "No relevant information found in the knowledge base."

// Assemble joins the first limit documents as "Source N:" blocks separated by a blank line.
// A non-positive limit uses every document.
func Assemble(res retrieval.Result, limit int) string {
	res = res.Top(limit)
	if res.IsEmpty() {
		return NoContextSentinel
	}

	var b strings.Builder
	for i, doc := range res.Documents() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Source ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(":\n")
		b.WriteString(doc.Content())
	}
	return b.String()
}
