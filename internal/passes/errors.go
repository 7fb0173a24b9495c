package passes

import (
	"errors"
	"fmt"
)

// PreconditionError is returned when a pass finds the graph in a state an
// earlier stage should have ruled out, such as a fusable activation with no
// quantization record. It is fatal: the pass aborts and the graph is left
// unchanged.
type PreconditionError struct {
	Pass    string // pass that detected the violation
	Node    string // offending node
	Message string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition violated at node %q: %s", e.Pass, e.Node, e.Message)
}

// IsPreconditionError returns true if the error is a PreconditionError.
// Uses errors.As to handle wrapped errors.
func IsPreconditionError(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
