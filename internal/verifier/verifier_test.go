package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sightline-ai/sightline/api/schemas"
)

// -- Test Setup Helpers --

func setupVerifier(t *testing.T) *Verifier {
	t.Helper()
	return New(NewContentMatcher(), zaptest.NewLogger(t))
}

func button(id string, x, y int, text string) schemas.Element {
	return schemas.Element{
		ID:         id,
		BBox:       schemas.BBox{X1: x, Y1: y, X2: x + 60, Y2: y + 30},
		Class:      schemas.ClassButton,
		Confidence: 0.7,
		Text:       text,
		Affordances: []schemas.Affordance{
			schemas.AffordanceClickable,
		},
	}
}

func stateOf(elements ...schemas.Element) schemas.ScreenState {
	return schemas.ScreenState{Elements: elements}
}

// -- Test Cases: Verify --

func TestVerify_IdenticalStates_NoExpectations_Passes(t *testing.T) {
	v := setupVerifier(t)
	s := stateOf(button("rect_0", 10, 10, "OK"), button("rect_1", 200, 10, "Cancel"))

	passed, message, changes := v.Verify("click", s, s, nil)

	assert.True(t, passed)
	assert.Contains(t, message, "verified successfully")
	assert.False(t, changes.any())
}

func TestVerify_IdenticalStates_GenericExpectation_Fails(t *testing.T) {
	v := setupVerifier(t)
	s := stateOf(button("rect_0", 10, 10, "OK"))

	passed, message, _ := v.Verify("click", s, s, []string{"screen change"})

	assert.False(t, passed)
	assert.Contains(t, message, "verification failed")
}

func TestVerify_NewElementExpectation(t *testing.T) {
	v := setupVerifier(t)
	prior := stateOf(button("rect_0", 10, 10, "OK"))
	next := stateOf(button("rect_0", 10, 10, "OK"), button("rect_1", 300, 300, "Dialog"))

	passed, _, changes := v.Verify("click", prior, next, []string{"new element appears"})

	assert.True(t, passed)
	assert.Equal(t, []string{"rect_1"}, changes.NewElements)
	assert.Equal(t, 1, changes.ElementCountChange)
}

func TestVerify_TextChangeExpectation(t *testing.T) {
	v := setupVerifier(t)
	prior := stateOf(button("rect_0", 10, 10, "0"))
	next := stateOf(button("rect_0", 10, 10, "42"))

	passed, _, changes := v.Verify("type", prior, next, []string{"text change in the display"})

	assert.True(t, passed)
	require.Len(t, changes.ModifiedElements, 1)
	require.Len(t, changes.ModifiedElements[0].Changes, 1)
	assert.Equal(t, "text", changes.ModifiedElements[0].Changes[0].Field)
	assert.Equal(t, "0", changes.ModifiedElements[0].Changes[0].Before)
	assert.Equal(t, "42", changes.ModifiedElements[0].Changes[0].After)
}

func TestVerify_AllExpectationsMustHold(t *testing.T) {
	v := setupVerifier(t)
	prior := stateOf(button("rect_0", 10, 10, "OK"))
	next := stateOf(button("rect_0", 10, 10, "OK"), button("rect_1", 300, 300, "Dialog"))

	// A new element appeared, but nothing was modified.
	passed, _, _ := v.Verify("click", prior, next, []string{"new element", "text change"})

	assert.False(t, passed)
}

// -- Test Cases: Diff --

func TestDiff_RemovalAndAdditionAreSymmetric(t *testing.T) {
	v := setupVerifier(t)
	small := stateOf(button("rect_0", 10, 10, "OK"))
	big := stateOf(button("rect_0", 10, 10, "OK"), button("rect_1", 300, 300, "Extra"))

	forward := v.Diff(small, big)
	backward := v.Diff(big, small)

	assert.Equal(t, []string{"rect_1"}, forward.NewElements)
	assert.Empty(t, forward.RemovedElements)
	assert.Equal(t, []string{"rect_1"}, backward.RemovedElements)
	assert.Empty(t, backward.NewElements)
	assert.Equal(t, forward.ElementCountChange, -backward.ElementCountChange)
}

func TestDiff_MatchesAcrossRecomputedIDs(t *testing.T) {
	v := setupVerifier(t)
	// Same button, new detection pass: the id changed and the box shifted
	// slightly. Content matching must still pair them.
	prior := stateOf(button("rect_0", 100, 100, "Submit"))
	next := stateOf(button("rect_3", 104, 102, "Submit"))

	changes := v.Diff(prior, next)

	assert.Empty(t, changes.NewElements)
	assert.Empty(t, changes.RemovedElements)
	require.Len(t, changes.ModifiedElements, 1)
	assert.Equal(t, "rect_3", changes.ModifiedElements[0].ID)
}

func TestDiff_EmptyStates(t *testing.T) {
	v := setupVerifier(t)

	changes := v.Diff(schemas.ScreenState{}, schemas.ScreenState{})

	assert.False(t, changes.any())
	assert.Equal(t, 0, changes.ElementCountChange)
}

func TestDiff_ConfidenceChangeIsRecorded(t *testing.T) {
	v := setupVerifier(t)
	a := button("rect_0", 10, 10, "OK")
	b := a
	b.Confidence = 0.6

	changes := v.Diff(stateOf(a), stateOf(b))

	require.Len(t, changes.ModifiedElements, 1)
	assert.Equal(t, "confidence", changes.ModifiedElements[0].Changes[0].Field)
}
