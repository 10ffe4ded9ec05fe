// Package fuzzy implements the 0-100 string similarity measure used by
// duplicate detection. The score is token-order-insensitive: descriptions
// are tokenized, sorted, and rejoined before a normalized Levenshtein
// comparison, so "AWS AMAZON" and "AMAZON AWS" score 100.
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// TokenSortRatio returns the similarity between a and b on a 0-100 scale.
// Both inputs are case-folded and token-sorted before comparison.
func TokenSortRatio(a, b string) int {
	na := normalizeTokens(a)
	nb := normalizeTokens(b)

	if na == nb {
		return 100
	}
	if na == "" || nb == "" {
		return 0
	}

	distance := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}

	score := 100 * (1 - float64(distance)/float64(longest))
	return int(math.Round(score))
}

// normalizeTokens lowercases the input, splits on any non-alphanumeric
// rune, sorts the tokens, and rejoins them with single spaces.
func normalizeTokens(s string) string {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
