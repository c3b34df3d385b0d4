// Package orchestrator drives one instruction through the full
// perceive, plan, act, verify pipeline. It is injected with fully configured
// components via interfaces, keeping it decoupled and testable.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
	"github.com/sightline-ai/sightline/internal/executor"
	"github.com/sightline-ai/sightline/internal/safety"
	"github.com/sightline-ai/sightline/internal/verifier"
)

// Perceiver turns a screenshot file into a screen state.
type Perceiver interface {
	DetectFile(ctx context.Context, path string) (schemas.ScreenState, error)
}

// Executor runs a plan's steps with per-step verification.
type Executor interface {
	Execute(ctx context.Context, plan schemas.Plan, initial schemas.ScreenState, verify executor.VerifyFunc) schemas.ExecutionResult
}

// Differ compares two screen states around one action.
type Differ interface {
	Verify(action string, prior, next schemas.ScreenState, expected []string) (bool, string, verifier.Changes)
}

// SafetyGate screens a plan before execution.
type SafetyGate interface {
	Check(plan schemas.Plan) safety.Decision
}

// Options carries the orchestrator's timing knobs.
type Options struct {
	// SettleDelay is the pause between an action and the verification
	// capture, giving the UI time to repaint.
	SettleDelay time.Duration
	// LaunchWait is the pause after launching an application before the
	// first capture.
	LaunchWait time.Duration
}

// Orchestrator owns the lifecycle of one instruction run.
type Orchestrator struct {
	capturer  schemas.Capturer
	launcher  schemas.Launcher
	perceiver Perceiver
	planner   schemas.Planner
	gate      SafetyGate
	confirmer schemas.Confirmer
	executor  Executor
	differ    Differ
	runLog    schemas.RunLogger
	opts      Options
	logger    *zap.Logger

	sleep func(ctx context.Context, d time.Duration)
}

// New wires the orchestrator. All dependencies are required except the
// launcher, which may be nil when the backend cannot launch applications.
func New(
	capturer schemas.Capturer,
	launcher schemas.Launcher,
	perceiver Perceiver,
	planner schemas.Planner,
	gate SafetyGate,
	confirmer schemas.Confirmer,
	executor Executor,
	differ Differ,
	runLog schemas.RunLogger,
	opts Options,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if capturer == nil || perceiver == nil || planner == nil || gate == nil ||
		confirmer == nil || executor == nil || differ == nil || runLog == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		capturer:  capturer,
		launcher:  launcher,
		perceiver: perceiver,
		planner:   planner,
		gate:      gate,
		confirmer: confirmer,
		executor:  executor,
		differ:    differ,
		runLog:    runLog,
		opts:      opts,
		logger:    logger.Named("orchestrator"),
		sleep:     sleepCtx,
	}, nil
}

var urlPattern = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+\.\S+`)

// arithmeticPattern spots inline expressions like "2+2" or "7 * 6", which
// imply the calculator even when the instruction never names it.
var arithmeticPattern = regexp.MustCompile(`\d\s*[-+*/x×]\s*\d`)

// instruction keywords that imply an application should be on screen before
// the first capture.
var appKeywords = map[string]string{
	"calculator":  "calculator",
	"calc":        "calculator",
	"text editor": "texteditor",
	"notepad":     "texteditor",
}

// Run drives one instruction to a terminal outcome. The returned RunResult is
// always non-nil and always finalized, whatever path the run takes; the error
// is non-nil only for ERRORED outcomes.
func (o *Orchestrator) Run(ctx context.Context, instruction, appName string) (*schemas.RunResult, error) {
	result := &schemas.RunResult{
		RunID:       o.runLog.RunID(),
		Instruction: instruction,
		StartedAt:   time.Now().UTC(),
	}
	o.logger.Info("Run starting",
		zap.String("run_id", result.RunID),
		zap.String("instruction", instruction),
	)
	if err := o.runLog.LogInstruction(ctx, instruction); err != nil {
		o.logger.Warn("Failed to log instruction", zap.Error(err))
	}

	runErr := o.run(ctx, instruction, appName, result)
	result.FinishedAt = time.Now().UTC()
	if runErr != nil {
		result.Outcome = schemas.RunErrored
		result.Error = runErr.Error()
	}

	ref, err := o.runLog.Finalize(ctx, result)
	if err != nil {
		o.logger.Error("Failed to finalize run log", zap.Error(err))
	} else {
		result.LogRef = ref
	}

	o.logger.Info("Run finished",
		zap.String("run_id", result.RunID),
		zap.String("outcome", string(result.Outcome)),
		zap.String("log_ref", result.LogRef),
	)
	return result, runErr
}

func (o *Orchestrator) run(ctx context.Context, instruction, appName string, result *schemas.RunResult) error {
	o.prepareScreen(ctx, instruction, appName)

	// Perceive. A failed capture or detection leaves nothing to plan
	// against: fatal.
	path, err := o.capturer.Capture(ctx, schemas.CaptureContext{Label: "initial"})
	if err != nil {
		o.logAction(ctx, "capture", err.Error(), false)
		return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	result.ScreenshotPath = path
	o.logAction(ctx, "capture", path, true)

	state, err := o.perceiver.DetectFile(ctx, path)
	if err != nil {
		o.logAction(ctx, "perceive", err.Error(), false)
		return fmt.Errorf("%w: %w", ErrPerceptionFailed, err)
	}
	result.ScreenState = &state
	o.logAction(ctx, "perceive", fmt.Sprintf("%d elements detected", len(state.Elements)), true)

	// Plan.
	plan, err := o.planner.GeneratePlan(ctx, instruction, state, nil)
	if err != nil {
		o.logAction(ctx, "plan", err.Error(), false)
		return fmt.Errorf("%w: %w", ErrPlanningFailed, err)
	}
	result.Plan = &plan
	o.logAction(ctx, "plan", fmt.Sprintf("plan %s with %d steps, confidence %.2f",
		plan.ID, len(plan.Steps), plan.Confidence), true)

	// Gate.
	decision := o.gate.Check(plan)
	result.SafetyWarnings = decision.Warnings
	o.logAction(ctx, "safety", decision.Reason, decision.IsSafe)
	if !decision.IsSafe {
		if !o.confirmer.Confirm(ctx, plan, decision.Warnings) {
			o.logAction(ctx, "confirm", "user declined the plan", false)
			result.Outcome = schemas.RunDeclined
			return nil
		}
		o.logAction(ctx, "confirm", "user approved the plan", true)
	}

	// Act and verify. Execution never errors the run: partial and even
	// total step failure still completes with a success rate.
	execution := o.executor.Execute(ctx, plan, state, o.verifyStep)
	result.Execution = &execution
	result.Outcome = schemas.RunCompleted
	o.logAction(ctx, "execute",
		fmt.Sprintf("success rate %.2f over %d steps", execution.SuccessRate, len(execution.Steps)),
		true)
	return nil
}

// prepareScreen performs best-effort pre-run setup: launching an explicitly
// requested application, or one implied by the instruction, and opening any
// URL the instruction mentions. Failures only skip the setup.
func (o *Orchestrator) prepareScreen(ctx context.Context, instruction, appName string) {
	if o.launcher == nil {
		return
	}
	launched := false
	if appName == "" {
		appName = impliedApp(instruction)
	}
	if appName != "" {
		launched = o.launcher.LaunchApp(ctx, appName)
		o.logAction(ctx, "launch", appName, launched)
		if launched {
			// Advisory only: an invisible window is recorded, never fatal.
			visible := o.launcher.AppVisible(ctx, appName)
			o.logAction(ctx, "window_visibility", appName, visible)
		}
	}
	if url := urlPattern.FindString(instruction); url != "" {
		opened := o.launcher.OpenWebsite(ctx, url)
		o.logAction(ctx, "open_website", url, opened)
		launched = launched || opened
	}
	if launched && o.opts.LaunchWait > 0 {
		o.sleep(ctx, o.opts.LaunchWait)
	}
}

func impliedApp(instruction string) string {
	lower := strings.ToLower(instruction)
	for keyword, app := range appKeywords {
		if strings.Contains(lower, keyword) {
			return app
		}
	}
	if arithmeticPattern.MatchString(lower) {
		return "calculator"
	}
	return ""
}

// verifyStep re-captures after a step and diffs the new state against the
// prior one. Verification failures never fail the run; they are recorded on
// the step outcome.
func (o *Orchestrator) verifyStep(ctx context.Context, step schemas.PlanStep, prior schemas.ScreenState) (schemas.Verification, schemas.ScreenState, string) {
	if step.Operation == schemas.OpWait {
		// Waiting asserts nothing about the screen.
		return schemas.VerifyNotAttempted, prior, "wait steps are not verified"
	}
	if o.opts.SettleDelay > 0 {
		o.sleep(ctx, o.opts.SettleDelay)
	}

	// A broken post-step capture or detection is a failed verification, not
	// a skipped one: the step's effect could not be confirmed.
	label := fmt.Sprintf("step_%d_verification", step.Index)
	path, err := o.capturer.Capture(ctx, schemas.CaptureContext{Label: label})
	if err != nil {
		message := fmt.Sprintf("verification capture failed: %v", err)
		o.logAction(ctx, label, message, false)
		return schemas.VerifyFail, prior, message
	}
	next, err := o.perceiver.DetectFile(ctx, path)
	if err != nil {
		message := fmt.Sprintf("verification perception failed: %v", err)
		o.logAction(ctx, label, message, false)
		return schemas.VerifyFail, prior, message
	}

	passed, message, _ := o.differ.Verify(string(step.Operation), prior, next, expectedChange(step))
	o.logAction(ctx, label, message, passed)
	if passed {
		return schemas.VerifyPass, next, message
	}
	return schemas.VerifyFail, next, message
}

// expectedChange derives the verification expectation from the step's verb.
func expectedChange(step schemas.PlanStep) []string {
	switch step.Operation {
	case schemas.OpType:
		return []string{"text change"}
	default:
		return []string{"screen change"}
	}
}

func (o *Orchestrator) logAction(ctx context.Context, name, message string, ok bool) {
	if err := o.runLog.LogAction(ctx, name, message, ok); err != nil {
		o.logger.Warn("Failed to record run event", zap.String("event", name), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
