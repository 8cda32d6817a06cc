package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// words splits s into lowercase words on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// tokenSet returns the distinct words of s with at least minLen runes.
func tokenSet(s string, minLen int) map[string]struct{} {
	set := make(map[string]struct{})

	for _, w := range words(s) {
		if utf8.RuneCountInString(w) >= minLen {
			set[w] = struct{}{}
		}
	}

	return set
}

// jaccard returns |A∩B| / |A∪B| over the token sets of a and b. Two empty sets score 0.
func jaccard(a, b string, minLen int) float64 {
	setA := tokenSet(a, minLen)
	setB := tokenSet(b, minLen)

	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0

	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}
