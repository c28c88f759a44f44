// Package similarity converts vector-store distances into relevance scores.
package similarity

import "math"

// FromDistance maps a raw distance (smaller is nearer) to a similarity in [0,1].
// Distances up to 1 map to 1-d; distances in (1,2] map to 2-d floored at 0.
// Negative distances and NaN never escape the [0,1] range.
func FromDistance(d float64) float64 {
	if math.IsNaN(d) {
		return 0
	}
	var s float64
	if d <= 1 {
		s = 1 - d
	} else {
		s = math.Max(0, 2-d)
	}
	return math.Min(1, math.Max(0, s))
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
