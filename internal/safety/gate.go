// Package safety evaluates a proposed plan for risk before any step may
// touch the live screen. A plan flagged unsafe needs explicit human
// confirmation; declining aborts the run without executing anything.
package safety

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
)

// destructiveKeywords is the fixed lexical marker set for operations that
// are potentially irreversible.
var destructiveKeywords = []string{
	"delete", "remove", "destroy", "clear", "reset", "format",
	"uninstall", "shutdown", "restart", "logout", "exit",
}

// Decision is the result of one gate check.
type Decision struct {
	IsSafe   bool
	Reason   string
	Warnings []string
}

// Policy decides safety from the collected evidence. Implementations choose
// how confidence interacts with destructive-keyword warnings.
type Policy interface {
	// Decide receives the plan confidence, the configured threshold, and
	// whether each warning class fired.
	Decide(confidence, threshold float64, lowConfidence bool, destructiveHits int) bool
	Name() string
}

// PermissiveOverride reproduces the source behavior: a plan is safe when
// there are no warnings at all, or when its confidence meets the threshold
// even though destructive keywords were found. Surprising, but deliberate;
// select ConservativeAnd to disable the override.
type PermissiveOverride struct{}

func (PermissiveOverride) Name() string { return "permissive" }

func (PermissiveOverride) Decide(confidence, threshold float64, lowConfidence bool, destructiveHits int) bool {
	if !lowConfidence && destructiveHits == 0 {
		return true
	}
	return confidence >= threshold
}

// ConservativeAnd treats any warning, low confidence or destructive keyword,
// as unsafe.
type ConservativeAnd struct{}

func (ConservativeAnd) Name() string { return "conservative" }

func (ConservativeAnd) Decide(confidence, threshold float64, lowConfidence bool, destructiveHits int) bool {
	return !lowConfidence && destructiveHits == 0
}

// PolicyFromName maps a config string to its strategy. Unknown names fall
// back to the permissive default.
func PolicyFromName(name string) Policy {
	if name == "conservative" {
		return ConservativeAnd{}
	}
	return PermissiveOverride{}
}

// Gate scans plans for risk signals and applies the configured policy.
type Gate struct {
	threshold float64
	policy    Policy
	logger    *zap.Logger
}

// NewGate builds a gate with the given confidence threshold and policy.
func NewGate(threshold float64, policy Policy, logger *zap.Logger) *Gate {
	return &Gate{
		threshold: threshold,
		policy:    policy,
		logger:    logger.Named("safety"),
	}
}

// Check evaluates one plan. Warnings are always collected in full so a
// confirmation prompt can show everything, regardless of which policy
// ultimately decides.
func (g *Gate) Check(plan schemas.Plan) Decision {
	var warnings []string

	lowConfidence := plan.Confidence < g.threshold
	if lowConfidence {
		warnings = append(warnings, fmt.Sprintf("Low confidence: %.2f < %.2f", plan.Confidence, g.threshold))
	}

	destructiveHits := 0
	for _, step := range plan.Steps {
		stepText := strings.ToLower(string(step.Operation) + " " + step.Value + " " + step.Explanation)
		for _, keyword := range destructiveKeywords {
			if strings.Contains(stepText, keyword) {
				warnings = append(warnings, fmt.Sprintf("Step %d: destructive keyword %q in %q", step.Index, keyword, strings.TrimSpace(stepText)))
				destructiveHits++
				break
			}
		}
	}

	isSafe := g.policy.Decide(plan.Confidence, g.threshold, lowConfidence, destructiveHits)

	reason := "Plan is safe to execute"
	if !isSafe {
		reason = "Plan requires human confirmation"
	}

	g.logger.Info("Safety check complete",
		zap.String("plan_id", plan.ID),
		zap.String("policy", g.policy.Name()),
		zap.Bool("is_safe", isSafe),
		zap.Float64("confidence", plan.Confidence),
		zap.Int("warnings", len(warnings)),
	)

	return Decision{IsSafe: isSafe, Reason: reason, Warnings: warnings}
}
