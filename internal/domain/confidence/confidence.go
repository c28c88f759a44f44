// Package confidence derives a [0,1] trust estimate for an answer.
package confidence

import (
	"math"
	"strings"

	"github.com/kailas-cloud/ragd/internal/domain/similarity"
)

// Mode selects the scoring formula.
type Mode string

// Scoring modes.
const (
	// Retrieval scores on similarities alone.
	Retrieval Mode = "retrieval"
	// Composite also weighs document count, answer length and hedging.
	Composite Mode = "composite"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Retrieval || m == Composite
}

// Composite formula weights.
const (
	similarityWeight  = 0.6
	coverageWeight    = 0.2
	lengthWeight      = 0.2
	uncertaintyMalus  = 0.3
	fullCoverageDocs  = 3
	fullLengthWords   = 50
	roundingPrecision = 3
)

// uncertaintyPhrases are matched case-insensitively as substrings.
var uncertaintyPhrases = []string{
	"not enough information",
	"insufficient information",
	"no relevant information",
	"cannot determine",
	"can't determine",
	"unclear",
	"i don't know",
	"i do not know",
}

// FromRetrieval returns the mean similarity rounded to 3 decimals, 0 for no documents.
func FromRetrieval(sims []float64) float64 {
	if len(sims) == 0 {
		return 0
	}
	return similarity.Round(mean(sims), roundingPrecision)
}

// FromAnswer combines retrieval quality with properties of the generated answer.
func FromAnswer(sims []float64, answer string) float64 {
	n := float64(len(sims))
	words := float64(len(strings.Fields(answer)))

	score := similarityWeight*mean(sims) +
		coverageWeight*math.Min(1, n/fullCoverageDocs) +
		lengthWeight*math.Min(1, words/fullLengthWords)
	if IsUncertain(answer) {
		score -= uncertaintyMalus
	}
	score = math.Min(1, math.Max(0, score))
	return similarity.Round(score, roundingPrecision)
}

// IsUncertain reports whether the answer hedges.
func IsUncertain(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range uncertaintyPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Scorer applies the configured formula.
type Scorer struct {
	mode Mode
}

// NewScorer creates a scorer; an unknown or empty mode falls back to Retrieval.
func NewScorer(m Mode) Scorer {
	if !m.IsValid() {
		m = Retrieval
	}
	return Scorer{mode: m}
}

// Mode returns the active formula.
func (s Scorer) Mode() Mode { return s.mode }

// Score computes confidence for the documents used and the answer produced.
func (s Scorer) Score(sims []float64, answer string) float64 {
	if s.mode == Composite {
		return FromAnswer(sims, answer)
	}
	return FromRetrieval(sims)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
