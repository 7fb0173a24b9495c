package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/actfuse/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// Graph well-formedness (E201-E206)
	ErrDanglingInput   = "E201" // input edge names a missing node
	ErrActivationArity = "E202" // activation node must have exactly one input
	ErrInputHasInputs  = "E203" // input node must not consume anything
	ErrDataflowCycle   = "E204" // dataflow cycle
	ErrActivationKind  = "E205" // activation node without a kind
	ErrBadOutput       = "E206" // graph output names a missing node

	// Document structure (E207-E209)
	ErrDuplicateNodeName = "E207" // duplicate node name
	ErrInvalidAttribute  = "E208" // float, null, or unsupported attribute value
	ErrMissingField      = "E209" // required field missing
)

// ValidationError represents a well-formedness error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a graph for well-formedness.
// Returns all errors found (does not fail-fast), ordered by node.
func Validate(g *ir.Graph) []ValidationError {
	var errs []ValidationError

	for _, n := range g.Nodes() {
		field := "nodes." + n.Name

		// E201: every input slot resolves to a live node
		for i, id := range n.Inputs {
			if _, ok := g.Node(id); !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.inputs[%d]", field, i),
					Message: fmt.Sprintf("input %s does not resolve to a node", g.NameOf(id)),
					Code:    ErrDanglingInput,
				})
			}
		}

		switch n.Op {
		case ir.OpActivation:
			// E202: exactly one input
			if len(n.Inputs) != 1 {
				errs = append(errs, ValidationError{
					Field:   field + ".inputs",
					Message: fmt.Sprintf("activation %q has %d inputs, want 1", n.Name, len(n.Inputs)),
					Code:    ErrActivationArity,
				})
			}
			// E205: activation kind present
			if strings.TrimSpace(n.Meta.Activation) == "" {
				errs = append(errs, ValidationError{
					Field:   field + ".activation",
					Message: fmt.Sprintf("activation %q has no activation kind", n.Name),
					Code:    ErrActivationKind,
				})
			}
		case ir.OpInput:
			// E203: sources consume nothing
			if len(n.Inputs) > 0 {
				errs = append(errs, ValidationError{
					Field:   field + ".inputs",
					Message: fmt.Sprintf("input node %q must not have inputs", n.Name),
					Code:    ErrInputHasInputs,
				})
			}
		}
	}

	// E206: outputs resolve
	for i, id := range g.OutputIDs() {
		if _, ok := g.Node(id); !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("outputs[%d]", i),
				Message: fmt.Sprintf("output %s does not resolve to a node", g.NameOf(id)),
				Code:    ErrBadOutput,
			})
		}
	}

	// E204: the dataflow must be acyclic
	for _, c := range AnalyzeCycles(g) {
		errs = append(errs, ValidationError{
			Field:   "nodes",
			Message: c.Message,
			Code:    ErrDataflowCycle,
		})
	}

	return errs
}

// WellFormed reports whether Validate finds no errors.
func WellFormed(g *ir.Graph) bool {
	return len(Validate(g)) == 0
}
