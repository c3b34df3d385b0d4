package schemas

import "context"

// -- Perception Collaborators --

// CaptureContext carries explicit per-capture state that must not live as
// package globals.
type CaptureContext struct {
	// Label names the capture for artifact files (e.g. "step_2_verification").
	Label string
}

// Capturer grabs the current screen synchronously. Implementations must
// return an error rather than a partial image when the grab fails.
type Capturer interface {
	// Capture writes a screenshot to a file and returns its path.
	Capture(ctx context.Context, cc CaptureContext) (string, error)
}

// Launcher opens applications and websites. Launching is best-effort: a
// false return must not abort a run, only skip steps that assume the
// application is visible.
type Launcher interface {
	LaunchApp(ctx context.Context, appName string) bool
	OpenWebsite(ctx context.Context, url string) bool
	// AppVisible reports whether a window for the named application is on
	// screen after a launch. Advisory only: callers record the answer and
	// proceed either way.
	AppVisible(ctx context.Context, appName string) bool
}

// TokenDetection is one recognized text token with the recognizer's reported
// confidence on a 0-100 scale.
type TokenDetection struct {
	Text       string
	BBox       BBox
	Confidence int
}

// TextRecognizer supplies raw OCR detections for the detector's text pass.
// A failed recognition degrades to an empty token set; it never aborts
// detection.
type TextRecognizer interface {
	Recognize(ctx context.Context, imagePath string) ([]TokenDetection, error)
}

// -- Planning Collaborator --

// Planner maps an instruction plus the current screen state to a proposed
// step sequence. The returned plan must carry a confidence in [0,1] and a
// non-negative step count; an empty step list is a valid no-op plan.
type Planner interface {
	GeneratePlan(ctx context.Context, instruction string, state ScreenState, memory map[string]string) (Plan, error)
}

// -- Actuation Collaborator --

// Actuator performs one plan step against the live screen. Perform must be
// idempotent-safe to retry: the coordinator may invoke it several times for
// the same step before giving up.
type Actuator interface {
	Perform(ctx context.Context, step PlanStep, state ScreenState) error
}

// -- Run Logging Collaborator --

// RunLogger accumulates the write-only audit trail of one run. Finalize
// persists the log and returns a reference to it; it is called exactly once
// per run regardless of the terminal outcome.
type RunLogger interface {
	LogInstruction(ctx context.Context, instruction string) error
	LogAction(ctx context.Context, name, message string, ok bool) error
	Finalize(ctx context.Context, result *RunResult) (string, error)
	RunID() string
}

// -- Confirmation Collaborator --

// Confirmer asks a human whether an unsafe plan may proceed. Absence of an
// answer (closed stdin, non-interactive environment) must be treated as
// refusal.
type Confirmer interface {
	Confirm(ctx context.Context, plan Plan, warnings []string) bool
}

// -- LLM Client (planner transport) --

// ModelTier selects a model by a speed/capability preference rather than by
// name.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions tunes one LLM completion.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
}

// GenerationRequest is a complete prompt for the planning model.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient abstracts the model provider behind the planner.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}
