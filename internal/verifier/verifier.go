// Package verifier decides whether an executed step produced an expected
// effect by diffing the screen states captured before and after it.
package verifier

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
)

// FieldChange records one differing field between matched elements.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Modification aggregates the field changes of one element that persisted
// across the two states but changed shape or content.
type Modification struct {
	ID      string        `json:"id"`
	Changes []FieldChange `json:"changes"`
}

// Changes is the observed structural diff between two screen states.
type Changes struct {
	ElementCountChange int            `json:"element_count_change"`
	NewElements        []string       `json:"new_elements"`
	RemovedElements    []string       `json:"removed_elements"`
	ModifiedElements   []Modification `json:"modified_elements"`
	// Error carries a diagnostic when diffing itself failed; the
	// verification is then reported as failed rather than raised.
	Error string `json:"error,omitempty"`
}

func (c Changes) any() bool {
	return c.ElementCountChange != 0 ||
		len(c.NewElements) > 0 ||
		len(c.RemovedElements) > 0 ||
		len(c.ModifiedElements) > 0
}

// Verifier compares screen state snapshots. The matcher decides element
// identity across snapshots; everything else is pure set arithmetic.
type Verifier struct {
	matcher Matcher
	logger  *zap.Logger
}

// New creates a verifier with the given matching strategy.
func New(matcher Matcher, logger *zap.Logger) *Verifier {
	return &Verifier{
		matcher: matcher,
		logger:  logger.Named("verifier"),
	}
}

// Verify checks whether the transition from prior to next matches every
// expected change. It never returns an error: failures while diffing are
// captured inside the returned Changes and reported as a failed
// verification.
func (v *Verifier) Verify(action string, prior, next schemas.ScreenState, expected []string) (passed bool, message string, changes Changes) {
	defer func() {
		if r := recover(); r != nil {
			passed = false
			message = fmt.Sprintf("Action '%s' verification error: %v", action, r)
			changes = Changes{Error: fmt.Sprint(r)}
			v.logger.Error("Verification panicked", zap.String("action", action), zap.Any("panic", r))
		}
	}()

	changes = v.Diff(prior, next)
	passed = v.checkExpected(changes, expected)

	if passed {
		message = fmt.Sprintf("Action '%s' verified successfully", action)
	} else {
		message = fmt.Sprintf("Action '%s' verification failed", action)
	}

	v.logger.Info("Verification result",
		zap.String("action", action),
		zap.Bool("passed", passed),
		zap.Int("count_change", changes.ElementCountChange),
		zap.Int("new", len(changes.NewElements)),
		zap.Int("removed", len(changes.RemovedElements)),
		zap.Int("modified", len(changes.ModifiedElements)),
	)
	return passed, message, changes
}

// Diff computes the structural difference between two screen states.
// Elements paired by the matcher are compared field-wise; everything
// unpaired is new or removed.
func (v *Verifier) Diff(prior, next schemas.ScreenState) Changes {
	changes := Changes{
		ElementCountChange: len(next.Elements) - len(prior.Elements),
	}

	pairs := v.matcher.Match(prior, next)
	pairedPrior := make(map[int]bool, len(pairs))
	pairedNext := make(map[int]bool, len(pairs))

	for _, pair := range pairs {
		pairedPrior[pair.Prior] = true
		pairedNext[pair.Next] = true

		before := prior.Elements[pair.Prior]
		after := next.Elements[pair.Next]
		if fields := elementChanges(before, after); len(fields) > 0 {
			changes.ModifiedElements = append(changes.ModifiedElements, Modification{
				ID:      after.ID,
				Changes: fields,
			})
		}
	}

	for i, e := range prior.Elements {
		if !pairedPrior[i] {
			changes.RemovedElements = append(changes.RemovedElements, e.ID)
		}
	}
	for j, e := range next.Elements {
		if !pairedNext[j] {
			changes.NewElements = append(changes.NewElements, e.ID)
		}
	}
	return changes
}

// elementChanges compares the text, bbox and confidence of two matched
// elements and records every field that differs.
func elementChanges(before, after schemas.Element) []FieldChange {
	var fields []FieldChange
	if before.Text != after.Text {
		fields = append(fields, FieldChange{Field: "text", Before: before.Text, After: after.Text})
	}
	if before.BBox != after.BBox {
		fields = append(fields, FieldChange{
			Field:  "bbox",
			Before: fmt.Sprintf("%v", before.BBox),
			After:  fmt.Sprintf("%v", after.BBox),
		})
	}
	if before.Confidence != after.Confidence {
		fields = append(fields, FieldChange{
			Field:  "confidence",
			Before: fmt.Sprintf("%.2f", before.Confidence),
			After:  fmt.Sprintf("%.2f", after.Confidence),
		})
	}
	return fields
}

// checkExpected resolves every expectation against the observed diff. With
// no expectations the verification passes trivially. Specific phrases map to
// specific rules; anything unrecognized falls back to "any change occurred".
// All expectations must hold.
func (v *Verifier) checkExpected(changes Changes, expected []string) bool {
	if changes.Error != "" {
		return false
	}
	if len(expected) == 0 {
		return true
	}

	for _, exp := range expected {
		lower := strings.ToLower(exp)
		switch {
		case strings.Contains(lower, "new element"):
			if len(changes.NewElements) == 0 {
				return false
			}
		case strings.Contains(lower, "element count"):
			if changes.ElementCountChange == 0 {
				return false
			}
		case strings.Contains(lower, "text change"):
			if len(changes.ModifiedElements) == 0 {
				return false
			}
		default:
			if !changes.any() {
				return false
			}
		}
	}
	return true
}
