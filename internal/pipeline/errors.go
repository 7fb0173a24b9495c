package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// PassError wraps a failure that aborted a pipeline run.
type PassError struct {
	// Code identifies the error category.
	Code PassErrorCode

	// Pass is the pass that failed; empty for run-level failures.
	Pass string

	// RunID identifies the affected run.
	RunID string

	// Iteration is the 1-based fixpoint iteration.
	Iteration int

	// Err is the underlying error.
	Err error
}

// PassErrorCode categorizes pipeline failures.
type PassErrorCode string

const (
	// ErrCodePreconditionViolated indicates a pass found the graph in a state
	// an earlier stage should have ruled out.
	ErrCodePreconditionViolated PassErrorCode = "PRECONDITION_VIOLATED"

	// ErrCodePassFailed indicates any other pass failure.
	ErrCodePassFailed PassErrorCode = "PASS_FAILED"

	// ErrCodeIterationsExceeded indicates a fixpoint run did not settle.
	ErrCodeIterationsExceeded PassErrorCode = "ITERATIONS_EXCEEDED"

	// ErrCodeCancelled indicates the context was cancelled between passes.
	ErrCodeCancelled PassErrorCode = "CANCELLED"
)

// Error implements the error interface.
func (e *PassError) Error() string {
	if e.Pass != "" {
		return fmt.Sprintf("%s: pass %s failed (run=%s, iteration=%d): %v", e.Code, e.Pass, e.RunID, e.Iteration, e.Err)
	}
	return fmt.Sprintf("%s: %v (run=%s)", e.Code, e.Err, e.RunID)
}

// Unwrap returns the underlying error.
func (e *PassError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code PassErrorCode) bool {
	var pe *PassError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsPreconditionViolation returns true if a pass aborted on a precondition.
func IsPreconditionViolation(err error) bool {
	return hasCode(err, ErrCodePreconditionViolated)
}

// IsIterationsExceeded returns true if a fixpoint run did not settle.
// Matches both PassError with ErrCodeIterationsExceeded and IterationsExceededError.
func IsIterationsExceeded(err error) bool {
	return hasCode(err, ErrCodeIterationsExceeded) || IsIterationsExceededError(err)
}

// IsCancelled returns true if the run stopped because its context ended.
func IsCancelled(err error) bool {
	return hasCode(err, ErrCodeCancelled)
}

// OrderError reports pass ordering constraints that cannot be satisfied.
type OrderError struct {
	Cycle []string // e.g. ["a", "b", "a"]
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	return fmt.Sprintf("pass ordering cycle: %s", strings.Join(e.Cycle, " → "))
}

// IsOrderingCycle returns true if the error is an OrderError.
func IsOrderingCycle(err error) bool {
	var oe *OrderError
	return errors.As(err, &oe)
}
