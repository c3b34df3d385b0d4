package schemas

import "time"

// ElementClass tags the kind of UI element a detection pass produced.
type ElementClass string

const (
	ClassButton    ElementClass = "button"
	ClassTextField ElementClass = "textfield"
	ClassTextLabel ElementClass = "text_label"
	ClassUnknown   ElementClass = "unknown"
)

// Affordance is a capability tag on an element. It guides which operations
// are valid against the element (a "readable" label should not be clicked).
type Affordance string

const (
	AffordanceClickable Affordance = "clickable"
	AffordanceFocusable Affordance = "focusable"
	AffordanceReadable  Affordance = "readable"
)

// BBox is an axis-aligned rectangle in integer pixel coordinates.
// A well-formed box satisfies X1 < X2 and Y1 < Y2.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() int { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BBox) Height() int { return b.Y2 - b.Y1 }

// Area returns the enclosed area in square pixels.
func (b BBox) Area() int { return b.Width() * b.Height() }

// Center returns the midpoint of the box, where click actions are aimed.
func (b BBox) Center() (x, y int) {
	return b.X1 + b.Width()/2, b.Y1 + b.Height()/2
}

// Valid reports whether the box is well-formed.
func (b BBox) Valid() bool { return b.X1 < b.X2 && b.Y1 < b.Y2 }

// Element is one detected interactive or readable region of the screen.
//
// The ID is unique only within the detection pass that produced it. It is
// NOT a persistent identity across screen states; diffing across captures
// must rely on positional and content similarity instead.
type Element struct {
	ID          string            `json:"id"`
	BBox        BBox              `json:"bbox"`
	Class       ElementClass      `json:"class"`
	Confidence  float64           `json:"confidence"`
	Text        string            `json:"text,omitempty"`
	Affordances []Affordance      `json:"affordances"`
	StyleHints  map[string]string `json:"style_hints,omitempty"`
}

// HasAffordance reports whether the element carries the given capability tag.
func (e Element) HasAffordance(a Affordance) bool {
	for _, af := range e.Affordances {
		if af == a {
			return true
		}
	}
	return false
}

// ScreenState is the intermediate screen representation (ISR): the ordered
// set of elements detected at one instant, tagged with the capture time and
// the source image it was produced from. A ScreenState is immutable once
// built; a re-capture yields a distinct value, never a mutation.
type ScreenState struct {
	Elements   []Element `json:"elements"`
	CapturedAt time.Time `json:"captured_at"`
	Source     string    `json:"source"`
}

// FindElement returns the element with the given id, if present.
func (s ScreenState) FindElement(id string) (Element, bool) {
	for _, e := range s.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return Element{}, false
}

// Operation is the verb of a single plan step.
type Operation string

const (
	OpClick Operation = "click"
	OpType  Operation = "type"
	OpKey   Operation = "key"
	OpWait  Operation = "wait"
)

// PlanStep is one proposed action consumed from the planner. Target is
// either an element id from the ScreenState the plan was generated against,
// or a literal payload (text to type, key chord, wait duration).
type PlanStep struct {
	Index       int       `json:"step"`
	Operation   Operation `json:"op"`
	Target      string    `json:"target"`
	Value       string    `json:"value,omitempty"`
	Explanation string    `json:"explain,omitempty"`
}

// Plan is an ordered step sequence plus the planner's scalar confidence in
// it. The orchestrator owns the plan for the duration of one instruction and
// discards it afterwards.
type Plan struct {
	ID         string     `json:"plan_id"`
	Confidence float64    `json:"confidence"`
	Steps      []PlanStep `json:"steps"`
}

// StepState labels a step's position in the execution state machine.
type StepState string

const (
	StepPending    StepState = "PENDING"
	StepAttempting StepState = "ATTEMPTING"
	StepSuccess    StepState = "SUCCESS"
	StepRetry      StepState = "RETRY"
	StepFailure    StepState = "FAILURE"
)

// Outcome is the final disposition of one executed step.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

// Verification is the result of re-perceiving after a step. It is tracked
// independently of the execution outcome: a step can actuate successfully
// and still fail verification, or succeed without verification having been
// attempted at all.
type Verification string

const (
	VerifyPass         Verification = "pass"
	VerifyFail         Verification = "fail"
	VerifyNotAttempted Verification = "not-attempted"
)

// StepOutcome records what happened to one plan step. Once appended to an
// ExecutionResult it is never mutated.
type StepOutcome struct {
	StepIndex    int          `json:"step"`
	Outcome      Outcome      `json:"outcome"`
	Attempts     int          `json:"attempts"`
	Verification Verification `json:"verification"`
	Detail       string       `json:"detail,omitempty"`
}

// ExecutionResult is the ordered sequence of step outcomes for one plan,
// with the success rate derived once after the final step.
type ExecutionResult struct {
	Steps       []StepOutcome `json:"steps"`
	SuccessRate float64       `json:"success_rate"`
}

// ComputeSuccessRate derives the fraction of steps whose execution outcome
// was success. A zero-step plan yields 0.
func (r *ExecutionResult) ComputeSuccessRate() {
	if len(r.Steps) == 0 {
		r.SuccessRate = 0
		return
	}
	var ok int
	for _, s := range r.Steps {
		if s.Outcome == OutcomeSuccess {
			ok++
		}
	}
	r.SuccessRate = float64(ok) / float64(len(r.Steps))
}

// RunOutcome is the terminal state of one orchestrated instruction.
type RunOutcome string

const (
	// RunCompleted means execution ran and a success rate was computed. Any
	// rate counts, including 0; a fully failed execution is still a
	// completed run, not an errored one.
	RunCompleted RunOutcome = "COMPLETED"
	// RunDeclined means the user refused an unsafe plan before any step
	// executed.
	RunDeclined RunOutcome = "DECLINED"
	// RunErrored means an unrecoverable failure during capture, perception
	// or planning aborted the run.
	RunErrored RunOutcome = "ERRORED"
)

// RunResult is the structured record of one instruction driven through the
// full pipeline. It is finalized exactly once per run, on every exit path.
type RunResult struct {
	RunID           string           `json:"run_id"`
	Instruction     string           `json:"instruction"`
	ScreenshotPath  string           `json:"screenshot_path,omitempty"`
	ScreenState     *ScreenState     `json:"screen_state,omitempty"`
	Plan            *Plan            `json:"plan,omitempty"`
	Execution       *ExecutionResult `json:"execution_result,omitempty"`
	SafetyWarnings  []string         `json:"safety_warnings,omitempty"`
	Outcome         RunOutcome       `json:"outcome"`
	Error           string           `json:"error,omitempty"`
	LogRef          string           `json:"log_ref,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
}
