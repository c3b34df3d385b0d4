// Package executor drives plan steps through an external actuator one at a
// time, applying bounded retries per step. A step that exhausts its retries
// is recorded as failed and the coordinator moves on; partial failure never
// aborts the remaining plan.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
)

// VerifyFunc re-perceives the screen after a successful step and reports
// whether the step's effect was observed. It receives the step that just
// ran and the screen state before it; it returns the fresh state for the
// next step's comparison. The orchestrator supplies this; the coordinator
// only threads it through.
type VerifyFunc func(ctx context.Context, step schemas.PlanStep, prior schemas.ScreenState) (schemas.Verification, schemas.ScreenState, string)

// Coordinator executes one plan against an actuator.
type Coordinator struct {
	actuator   schemas.Actuator
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	// sleep is swappable so tests don't wait on real retry delays.
	sleep func(ctx context.Context, d time.Duration)
}

// New builds a coordinator. maxRetries bounds the attempts per step
// (attempt 1 counts against the bound); retryDelay is the fixed blocking
// wait between attempts.
func New(actuator schemas.Actuator, maxRetries int, retryDelay time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		actuator:   actuator,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.Named("executor"),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Execute runs every step of the plan in order. Steps are strictly
// sequential: no actuation is issued until the previous step's outcome is
// settled. After each successful actuation the verify callback re-perceives
// the screen; its result is attached to the step outcome but never changes
// the execution outcome.
func (c *Coordinator) Execute(ctx context.Context, plan schemas.Plan, initial schemas.ScreenState, verify VerifyFunc) schemas.ExecutionResult {
	result := schemas.ExecutionResult{}
	current := initial

	for _, step := range plan.Steps {
		outcome := c.executeStep(ctx, step, current)

		if outcome.Outcome == schemas.OutcomeSuccess && verify != nil {
			verification, next, detail := verify(ctx, step, current)
			outcome.Verification = verification
			if detail != "" {
				outcome.Detail = detail
			}
			if verification != schemas.VerifyNotAttempted {
				current = next
			}
		}

		result.Steps = append(result.Steps, outcome)
	}

	result.ComputeSuccessRate()
	c.logger.Info("Plan execution finished",
		zap.String("plan_id", plan.ID),
		zap.Int("steps", len(result.Steps)),
		zap.Float64("success_rate", result.SuccessRate),
	)
	return result
}

// executeStep runs one step through the PENDING -> ATTEMPTING ->
// {SUCCESS | RETRY | FAILURE} state machine.
func (c *Coordinator) executeStep(ctx context.Context, step schemas.PlanStep, state schemas.ScreenState) schemas.StepOutcome {
	outcome := schemas.StepOutcome{
		StepIndex:    step.Index,
		Verification: schemas.VerifyNotAttempted,
	}

	if err := ctx.Err(); err != nil {
		outcome.Outcome = schemas.OutcomeSkipped
		outcome.Detail = fmt.Sprintf("skipped: %v", err)
		return outcome
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		outcome.Attempts = attempt

		c.logger.Debug("Attempting step",
			zap.Int("step", step.Index),
			zap.String("op", string(step.Operation)),
			zap.Int("attempt", attempt),
		)

		if err := c.actuator.Perform(ctx, step, state); err != nil {
			lastErr = err
			c.logger.Warn("Step attempt failed",
				zap.Int("step", step.Index),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if attempt < c.maxRetries {
				c.sleep(ctx, c.retryDelay)
			}
			continue
		}

		outcome.Outcome = schemas.OutcomeSuccess
		outcome.Detail = fmt.Sprintf("succeeded on attempt %d", attempt)
		return outcome
	}

	outcome.Outcome = schemas.OutcomeFailure
	outcome.Detail = fmt.Sprintf("exhausted %d attempts: %v", c.maxRetries, lastErr)
	return outcome
}
