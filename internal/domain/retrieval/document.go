package retrieval

import (
	"math"
	"strconv"
	"strings"
)

var (
	pageKeys   = []string{"page", "page_number", "page_label"}
	sourceKeys = []string{"source", "file_name", "filename", "file_path"}
)

// Document is a kept passage with its normalized similarity and 1-based rank.
type Document struct {
	content    string
	metadata   map[string]any
	similarity float64
	rank       int
	page       int
	hasPage    bool
	source     string
}

// NewDocument builds a ranked document and extracts page/source hints from metadata.
func NewDocument(content string, metadata map[string]any, similarity float64, rank int) Document {
	if metadata == nil {
		metadata = map[string]any{}
	}
	d := Document{
		content:    content,
		metadata:   metadata,
		similarity: similarity,
		rank:       rank,
	}
	d.page, d.hasPage = extractPage(metadata)
	d.source = extractSource(metadata)
	return d
}

// Content returns the passage text.
func (d Document) Content() string { return d.content }

// Metadata returns the passage metadata.
func (d Document) Metadata() map[string]any { return d.metadata }

// Similarity returns the normalized relevance score in [0,1].
func (d Document) Similarity() float64 { return d.similarity }

// Rank returns the 1-based position in the kept order.
func (d Document) Rank() int { return d.rank }

// Page returns the page number when metadata carries one.
func (d Document) Page() (int, bool) { return d.page, d.hasPage }

// Source returns the source file or URI, empty when unknown.
func (d Document) Source() string { return d.source }

func extractPage(md map[string]any) (int, bool) {
	for _, k := range pageKeys {
		v, ok := md[k]
		if !ok {
			continue
		}
		switch p := v.(type) {
		case int:
			return p, true
		case int64:
			return int(p), true
		case float64:
			if p == math.Trunc(p) {
				return int(p), true
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func extractSource(md map[string]any) string {
	for _, k := range sourceKeys {
		if s, ok := md[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
