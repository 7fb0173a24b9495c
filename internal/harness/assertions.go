package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/actfuse/internal/compiler"
	"github.com/roach88/actfuse/internal/ir"
	"github.com/roach88/actfuse/internal/passes"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Node     string       // Node under test, if any
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Journaled rewrites for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	if e.Node != "" {
		fmt.Fprintf(&buf, "Assertion failed: %s (node %s)\n", e.Type, e.Node)
	} else {
		fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	}
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nRewrites:\n")
		for _, ev := range e.Trace {
			for _, rw := range ev.Rewrites {
				fmt.Fprintf(&buf, "  [%s #%d %s] %s\n", ev.Run, ev.Seq, ev.Pass, describeRewrite(rw))
			}
		}
	}
	return buf.String()
}

func describeRewrite(rw ir.RewriteRecord) string {
	switch rw.Kind {
	case ir.RewriteFuseActivation:
		return fmt.Sprintf("%s (%s) fused into %s", rw.Node, rw.Activation, rw.Into)
	case ir.RewriteQuantize:
		if rw.Precision != nil {
			return fmt.Sprintf("%s quantized to %s", rw.Node, rw.Precision)
		}
	}
	return fmt.Sprintf("%s %s", rw.Kind, rw.Node)
}

// checkAssertion evaluates one assertion against the final graph and trace.
func checkAssertion(g *ir.Graph, trace []TraceEvent, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{
			Type:     a.Type,
			Node:     a.Node,
			Expected: expected,
			Actual:   actual,
			Trace:    trace,
		}
	}

	if a.Type == AssertNodeAbsent {
		if _, ok := g.Lookup(a.Node); ok {
			return fail("node absent", "node present")
		}
		return nil
	}

	var n *ir.Node
	if a.Node != "" {
		var ok bool
		if n, ok = g.Lookup(a.Node); !ok {
			return fail("node present", "node absent")
		}
	}

	switch a.Type {
	case AssertNodePresent:
		return nil

	case AssertHasTrait:
		kind, ok := fusedActivation(n)
		if !ok {
			return fail("fused_activation trait", "no trait")
		}
		if a.Activation != "" && kind != passes.NormalizeActivation(a.Activation) {
			return fail("fused_activation "+passes.NormalizeActivation(a.Activation), "fused_activation "+kind)
		}
		return nil

	case AssertNoTrait:
		if kind, ok := fusedActivation(n); ok {
			return fail("no fused_activation trait", "fused_activation "+kind)
		}
		return nil

	case AssertPrecision:
		actual := PrecisionNone
		if !n.Meta.Quant.Empty() {
			actual = n.Meta.Quant.OutputPrecision.String()
		}
		expected := a.Precision
		if expected != PrecisionNone {
			p, err := ir.ParsePrecision(expected)
			if err != nil {
				return fail(expected, err.Error())
			}
			expected = p.String()
		}
		if actual != expected {
			return fail(expected, actual)
		}
		return nil

	case AssertConsumes:
		actual := make([]string, len(n.Inputs))
		for i, id := range n.Inputs {
			actual[i] = g.NameOf(id)
		}
		if !slices.Equal(actual, a.Inputs) {
			return fail(fmt.Sprintf("inputs %v", a.Inputs), fmt.Sprintf("inputs %v", actual))
		}
		return nil

	case AssertOutputs:
		outputs := g.Outputs()
		actual := make([]string, len(outputs))
		for i, o := range outputs {
			actual[i] = o.Name
		}
		if !slices.Equal(actual, a.Outputs) {
			return fail(fmt.Sprintf("outputs %v", a.Outputs), fmt.Sprintf("outputs %v", actual))
		}
		return nil

	case AssertNodeCount:
		if g.Len() != a.Count {
			return fail(fmt.Sprintf("%d nodes", a.Count), fmt.Sprintf("%d nodes", g.Len()))
		}
		return nil

	case AssertRewriteCount:
		count := 0
		for _, ev := range trace {
			for _, rw := range ev.Rewrites {
				if a.Kind == "" || rw.Kind == a.Kind {
					count++
				}
			}
		}
		if count != a.Count {
			return fail(fmt.Sprintf("%d rewrites", a.Count), fmt.Sprintf("%d rewrites", count))
		}
		return nil

	case AssertWellFormed:
		if errs := compiler.Validate(g); len(errs) > 0 {
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return fail("well-formed graph", strings.Join(msgs, "; "))
		}
		return nil
	}

	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// fusedActivation returns the activation kind recorded by the node's
// fused_activation trait.
func fusedActivation(n *ir.Node) (string, bool) {
	t, ok := n.Trait(ir.TraitFusedActivation)
	if !ok {
		return "", false
	}
	kind, _ := t.Params["activation"].(ir.IRString)
	return string(kind), true
}
