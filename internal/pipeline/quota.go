package pipeline

import (
	"errors"
	"fmt"
)

// IterationQuota bounds the number of fixpoint iterations of one run.
//
// Each pass is expected to shrink or settle the graph, but a pass that keeps
// reporting a change (or two passes that undo each other) would otherwise
// loop forever. The quota turns that into a run failure.
type IterationQuota struct {
	maxIterations int
	current       int
}

// NewIterationQuota creates a quota with the given limit.
func NewIterationQuota(maxIterations int) *IterationQuota {
	return &IterationQuota{maxIterations: maxIterations}
}

// Check increments the iteration counter and validates it against the limit.
// Returns IterationsExceededError if the quota is exceeded.
func (q *IterationQuota) Check(runID string) error {
	q.current++
	if q.current > q.maxIterations {
		return &IterationsExceededError{
			RunID:      runID,
			Iterations: q.current,
			Limit:      q.maxIterations,
		}
	}
	return nil
}

// Current returns the current iteration count.
func (q *IterationQuota) Current() int {
	return q.current
}

// MaxIterations returns the limit.
func (q *IterationQuota) MaxIterations() int {
	return q.maxIterations
}

// IterationsExceededError is returned when a fixpoint run does not settle
// within the iteration quota.
type IterationsExceededError struct {
	RunID      string
	Iterations int
	Limit      int
}

// Error implements the error interface.
func (e *IterationsExceededError) Error() string {
	return fmt.Sprintf("run %s did not reach a fixed point: iteration %d > %d limit",
		e.RunID, e.Iterations, e.Limit)
}

// IsIterationsExceededError returns true if the error is an IterationsExceededError.
// Uses errors.As to handle wrapped errors.
func IsIterationsExceededError(err error) bool {
	var ie *IterationsExceededError
	return errors.As(err, &ie)
}
