package similarity

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var wordSplit = regexp.MustCompile(`\W+`)

const minJaccardWordLen = 3

// TextSimilarity blends word-set overlap with edit distance:
// 0.6*Jaccard + 0.4*(1 - normalized Levenshtein). Words shorter than three
// characters are excluded from the Jaccard sets. Result is in [0, 1].
func TextSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	jaccard := jaccardSimilarity(wordSet(a), wordSet(b))

	// The distance counts runes, so the normalization must too.
	la, lb := strings.ToLower(a), strings.ToLower(b)
	maxLen := utf8.RuneCountInString(la)
	if n := utf8.RuneCountInString(lb); n > maxLen {
		maxLen = n
	}
	lev := 1.0 - float64(levenshtein(la, lb))/float64(maxLen)

	return jaccard*0.6 + lev*0.4
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range wordSplit.Split(strings.ToLower(s), -1) {
		if len(w) >= minJaccardWordLen {
			set[w] = struct{}{}
		}
	}
	return set
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// levenshtein computes the edit distance with a two-row rolling matrix.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(rb); i++ {
		curr[0] = i
		for j := 1; j <= len(ra); j++ {
			cost := 1
			if rb[i-1] == ra[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j-1]+cost, curr[j-1]+1, prev[j]+1)
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
