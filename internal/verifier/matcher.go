package verifier

import (
	"math"
	"sort"

	"github.com/sightline-ai/sightline/api/schemas"
)

// Matcher pairs elements of a prior screen state with elements of a newer
// one. Detection ids are recomputed on every pass, so the pairing strategy
// decides what "the same element" means across time.
type Matcher interface {
	// Match returns index pairs (prior index, next index) for elements
	// considered the same across the two states. Unpaired elements are
	// treated as removed (prior side) or new (next side) by the differ.
	Match(prior, next schemas.ScreenState) []MatchPair
}

// MatchPair links one prior element to one next element by slice index.
type MatchPair struct {
	Prior int
	Next  int
}

// IDMatcher pairs elements by raw id equality. This reproduces the source
// behavior and is only sound when both states came from the same detection
// pass; kept as an explicit opt-in.
type IDMatcher struct{}

func (IDMatcher) Match(prior, next schemas.ScreenState) []MatchPair {
	byID := make(map[string]int, len(next.Elements))
	for j, e := range next.Elements {
		byID[e.ID] = j
	}
	var pairs []MatchPair
	for i, e := range prior.Elements {
		if j, ok := byID[e.ID]; ok {
			pairs = append(pairs, MatchPair{Prior: i, Next: j})
		}
	}
	return pairs
}

// ContentMatcher pairs elements by positional and textual similarity:
// nearest bounding box refined by text similarity. It is the default
// strategy, since ids carry no identity across detection passes.
type ContentMatcher struct {
	// MaxCenterDistance bounds how far an element may move between states
	// and still count as the same element, in pixels.
	MaxCenterDistance float64
}

// NewContentMatcher returns a matcher with the default distance bound.
func NewContentMatcher() ContentMatcher {
	return ContentMatcher{MaxCenterDistance: 80}
}

func (m ContentMatcher) Match(prior, next schemas.ScreenState) []MatchPair {
	type scored struct {
		pair  MatchPair
		score float64
	}
	var all []scored
	for i, p := range prior.Elements {
		for j, n := range next.Elements {
			s, ok := m.score(p, n)
			if ok {
				all = append(all, scored{MatchPair{i, j}, s})
			}
		}
	}
	// Greedy assignment: best scores first, each element used at most once.
	sort.Slice(all, func(a, b int) bool { return all[a].score < all[b].score })

	usedPrior := make(map[int]bool, len(prior.Elements))
	usedNext := make(map[int]bool, len(next.Elements))
	var pairs []MatchPair
	for _, s := range all {
		if usedPrior[s.pair.Prior] || usedNext[s.pair.Next] {
			continue
		}
		usedPrior[s.pair.Prior] = true
		usedNext[s.pair.Next] = true
		pairs = append(pairs, s.pair)
	}
	return pairs
}

// score combines center distance with text dissimilarity. Lower is better;
// ok is false when the pair cannot plausibly be the same element.
func (m ContentMatcher) score(a, b schemas.Element) (float64, bool) {
	if a.Class != b.Class {
		return 0, false
	}
	ax, ay := a.BBox.Center()
	bx, by := b.BBox.Center()
	dist := math.Hypot(float64(ax-bx), float64(ay-by))
	if dist > m.MaxCenterDistance {
		return 0, false
	}

	// Normalize distance into [0,1] and blend with text dissimilarity.
	distScore := dist / m.MaxCenterDistance
	textScore := 1 - textSimilarity(a.Text, b.Text)
	return 0.7*distScore + 0.3*textScore, true
}

// textSimilarity returns a [0,1] similarity ratio based on edit distance.
// Two empty strings are considered identical.
func textSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance with a two-row table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, min(cur[j-1]+1, prev[j-1]+cost))
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
