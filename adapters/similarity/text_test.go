package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextSimilarity_IdenticalStrings(t *testing.T) {
	s := "employee terminated without written warning"
	assert.InDelta(t, 1.0, TextSimilarity(s, s), 1e-9)
}

func TestTextSimilarity_EmptyInput(t *testing.T) {
	assert.Equal(t, 0.0, TextSimilarity("", "anything"))
	assert.Equal(t, 0.0, TextSimilarity("anything", ""))
}

func TestTextSimilarity_DisjointStrings(t *testing.T) {
	sim := TextSimilarity("overtime pay dispute", "xxqq zzyy wwvv")
	assert.Less(t, sim, 0.3)
}

func TestTextSimilarity_SharedWordsScoreHigher(t *testing.T) {
	base := "employee was terminated for tardiness"
	near := "employee was terminated for absenteeism"
	far := "the cafeteria menu changed on tuesday"

	assert.Greater(t, TextSimilarity(base, near), TextSimilarity(base, far))
}

func TestTextSimilarity_ShortWordsExcludedFromJaccard(t *testing.T) {
	// Only words of three or more characters count toward word overlap, so
	// strings sharing nothing but short words get no Jaccard credit.
	sim := TextSimilarity("a an to of", "a an to of stuff")
	assert.Less(t, sim, 0.5)
}

func TestTextSimilarity_NonASCIINormalizesByRunes(t *testing.T) {
	// "née" vs "nee": one substitution over three runes. No Jaccard
	// overlap, so the score is 0.4*(1 - 1/3). Byte-length normalization
	// would give the larger 0.4*(1 - 1/4).
	assert.InDelta(t, 0.4*(2.0/3.0), TextSimilarity("née", "nee"), 1e-9)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "levenshtein(%q, %q)", tt.a, tt.b)
	}
}
