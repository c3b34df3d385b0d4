package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-ai/sightline/api/schemas"
)

func TestIDMatcher_PairsByExactID(t *testing.T) {
	prior := stateOf(button("rect_0", 10, 10, "A"), button("rect_1", 200, 10, "B"))
	next := stateOf(button("rect_1", 500, 500, "changed"), button("rect_9", 10, 10, "A"))

	pairs := IDMatcher{}.Match(prior, next)

	require.Len(t, pairs, 1)
	assert.Equal(t, MatchPair{Prior: 1, Next: 0}, pairs[0])
}

func TestContentMatcher_PrefersNearestBox(t *testing.T) {
	m := NewContentMatcher()
	prior := stateOf(button("rect_0", 100, 100, ""))
	next := stateOf(button("rect_5", 400, 400, ""), button("rect_6", 103, 101, ""))

	pairs := m.Match(prior, next)

	require.Len(t, pairs, 1)
	assert.Equal(t, MatchPair{Prior: 0, Next: 1}, pairs[0])
}

func TestContentMatcher_RespectsDistanceBound(t *testing.T) {
	m := NewContentMatcher()
	prior := stateOf(button("rect_0", 0, 0, "A"))
	next := stateOf(button("rect_0", 500, 500, "A"))

	pairs := m.Match(prior, next)

	assert.Empty(t, pairs, "elements farther than the bound are distinct")
}

func TestContentMatcher_ClassMismatchNeverPairs(t *testing.T) {
	m := NewContentMatcher()
	label := button("text_0", 10, 10, "hello")
	label.Class = schemas.ClassTextLabel
	prior := stateOf(button("rect_0", 10, 10, "hello"))
	next := stateOf(label)

	pairs := m.Match(prior, next)

	assert.Empty(t, pairs)
}

func TestContentMatcher_TextBreaksPositionalTies(t *testing.T) {
	m := NewContentMatcher()
	prior := stateOf(button("rect_0", 100, 100, "Save"))
	// Two candidates at equal distance; the one with matching text wins.
	next := stateOf(button("rect_1", 90, 100, "Discard"), button("rect_2", 110, 100, "Save"))

	pairs := m.Match(prior, next)

	require.Len(t, pairs, 1)
	assert.Equal(t, 1, pairs[0].Next)
}

func TestContentMatcher_EachElementUsedOnce(t *testing.T) {
	m := NewContentMatcher()
	prior := stateOf(button("rect_0", 100, 100, "A"), button("rect_1", 120, 100, "B"))
	next := stateOf(button("rect_7", 101, 100, "A"), button("rect_8", 121, 100, "B"))

	pairs := m.Match(prior, next)

	require.Len(t, pairs, 2)
	seenPrior := map[int]bool{}
	seenNext := map[int]bool{}
	for _, p := range pairs {
		assert.False(t, seenPrior[p.Prior])
		assert.False(t, seenNext[p.Next])
		seenPrior[p.Prior] = true
		seenNext[p.Next] = true
	}
}

func TestTextSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, textSimilarity("", ""))
	assert.Equal(t, 1.0, textSimilarity("same", "same"))
	assert.Equal(t, 0.0, textSimilarity("abc", "xyz"))
	assert.InDelta(t, 0.75, textSimilarity("abcd", "abcx"), 0.001)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, levenshtein([]rune(tc.a), []rune(tc.b)), "%q vs %q", tc.a, tc.b)
	}
}
