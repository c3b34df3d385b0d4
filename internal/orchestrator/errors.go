package orchestrator

import "errors"

// Fatal pipeline errors. Only the stages before execution can abort a run;
// callers match with errors.Is to distinguish which stage gave out.
var (
	ErrCaptureFailed    = errors.New("screen capture failed")
	ErrPerceptionFailed = errors.New("perception failed")
	ErrPlanningFailed   = errors.New("planning failed")
)
