package flow

import "fmt"

// StepFailure records one failed step, critical or not.
type StepFailure struct {
	Step StepKind
	Err  error
}

func (f StepFailure) String() string {
	return fmt.Sprintf("%s: %v", f.Step, f.Err)
}

// CriticalStepError wraps the failure that aborted a flow. Steps after
// the failing one did not run.
type CriticalStepError struct {
	Step StepKind
	Err  error
}

func (e *CriticalStepError) Error() string {
	return fmt.Sprintf("critical step %s failed: %v", e.Step, e.Err)
}

func (e *CriticalStepError) Unwrap() error {
	return e.Err
}
