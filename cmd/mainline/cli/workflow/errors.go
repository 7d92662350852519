package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/checks"
)

// Workflow errors. Port and store errors (ErrGitFailure, ErrForgeFailure,
// ErrNoSession, ErrLockHeld, ...) propagate from their packages unchanged.
var (
	// ErrDirtyWorkingTree is returned when uncommitted changes are present
	// where the operation forbids them.
	ErrDirtyWorkingTree = errors.New("working tree has uncommitted changes")

	// ErrCIFailed is returned by ship when a required check concluded failed.
	ErrCIFailed = errors.New("required checks failed")

	// ErrCITimeout is returned by ship when the CI wait expired with checks
	// still pending.
	ErrCITimeout = errors.New("timed out waiting for checks")

	// ErrCancelled is returned when the caller cancelled the operation.
	// Durable state reflects the last persisted transition.
	ErrCancelled = errors.New("operation cancelled")

	// ErrTimeout is returned when the caller-supplied operation deadline
	// elapsed. Behaves exactly like cancellation.
	ErrTimeout = errors.New("operation timed out")
)

// PreflightError reports an error-severity pre-flight failure. Nothing
// durable was touched. Callers map it to exit code 2.
type PreflightError struct {
	Outcome *checks.Outcome
}

func (e *PreflightError) Error() string {
	if f := e.Outcome.FirstFailure(); f != nil {
		msg := fmt.Sprintf("pre-flight check %q failed: %s", f.Name, f.Message)
		if f.Details != nil && f.Details.Suggestion != "" {
			msg += " (" + f.Details.Suggestion + ")"
		}
		return msg
	}
	return "pre-flight checks failed"
}

// StepError reports which pipeline step failed, wrapping the cause.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// ctxErr maps a context error to the workflow sentinel.
func ctxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrCancelled, err)
}
