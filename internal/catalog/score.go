package catalog

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Threshold is the worst score still reported as a match. Scores run from 0
// (exact) to 1 (nothing in common).
const Threshold = 0.4

// Bonus scores for matches that need no edit distance.
const (
	prefixScore    = 0.1
	substringScore = 0.2
	tokenPrefix    = 0.15
)

// Penalties rank tag and description hits below an equally good name hit,
// so only a package with that exact name scores 0.
const (
	tagPenalty         = 0.02
	descriptionPenalty = 0.05
)

// tokenize lower-cases s and splits it on anything that is not a letter or
// digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// distance is the edit distance between a and b scaled by the longer length.
func distance(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}

// fieldScore compares a lower-cased query against one field value.
func fieldScore(query string, queryTokens []string, field string) float64 {
	f := strings.ToLower(strings.TrimSpace(field))
	switch {
	case f == "":
		return 1
	case f == query:
		return 0
	case strings.HasPrefix(f, query):
		return prefixScore
	case strings.Contains(f, query):
		return substringScore
	}

	best := distance(query, f)
	fieldTokens := tokenize(f)
	if len(queryTokens) == 0 || len(fieldTokens) == 0 {
		return best
	}

	// Every query token is paired with its closest field token.
	var sum float64
	for _, qt := range queryTokens {
		closest := 1.0
		for _, ft := range fieldTokens {
			d := distance(qt, ft)
			if strings.HasPrefix(ft, qt) {
				d = min(d, tokenPrefix)
			}
			closest = min(closest, d)
		}
		sum += closest
	}
	return min(best, sum/float64(len(queryTokens)))
}

// Score rates how well text matches the package. The best of the name,
// description and tag scores wins.
func Score(text string, name, description string, tags []string) float64 {
	query := strings.ToLower(strings.TrimSpace(text))
	if query == "" {
		return 0
	}
	queryTokens := tokenize(query)

	score := fieldScore(query, queryTokens, name)
	if description != "" {
		score = min(score, min(1, fieldScore(query, queryTokens, description)+descriptionPenalty))
	}
	for _, tag := range tags {
		score = min(score, min(1, fieldScore(query, queryTokens, tag)+tagPenalty))
	}
	return score
}
