package files

import (
	"github.com/pmezard/go-difflib/difflib"
)

// DefaultSimilarity is the minimum ratio for a fuzzy name match.
const DefaultSimilarity = 0.8

// Similarity is the SequenceMatcher ratio of a and b, in [0, 1].
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(splitChars(a), splitChars(b))
	return m.Ratio()
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// BestMatch picks the local name for query. An exact name wins outright;
// otherwise the highest ratio at or above threshold wins, ties going to
// the lexicographically smallest name.
func BestMatch(query string, names []string, threshold float64) (string, bool) {
	for _, n := range names {
		if n == query {
			return n, true
		}
	}

	best, bestRatio := "", -1.0
	for _, n := range names {
		r := Similarity(query, n)
		if r < threshold {
			continue
		}
		if r > bestRatio || (r == bestRatio && n < best) {
			best, bestRatio = n, r
		}
	}
	return best, bestRatio >= 0
}
