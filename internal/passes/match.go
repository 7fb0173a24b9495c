package passes

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/actfuse/internal/ir"
)

// Activation kinds a producer can absorb.
const (
	ActivationReLU   = "relu"
	ActivationLinear = "linear"
)

// NormalizeActivation returns the canonical lowercase form of an activation
// kind as written by an importer ("ReLU", " Linear ").
func NormalizeActivation(kind string) string {
	// A Caser is stateful; build one per call.
	return cases.Lower(language.Und).String(strings.TrimSpace(kind))
}

// SupportedActivation reports whether a normalized kind can be fused.
func SupportedActivation(kind string) bool {
	return kind == ActivationReLU || kind == ActivationLinear
}

// Match is the outcome of evaluating the fusion pattern on one node.
type Match struct {
	OK         bool
	Producer   *ir.Node // set when OK
	Activation string   // normalized kind, set when OK
	Reason     string   // why the node was rejected, for debug logs
}

// MatchFusion evaluates whether n is an activation that can be folded into
// its producer. It reads the graph and never modifies it.
//
// The node must be an activation with exactly one input slot and a relu or
// linear kind. A dense producer absorbs either kind, an input producer only
// absorbs linear, and any other producer is rejected.
func MatchFusion(g *ir.Graph, n *ir.Node) Match {
	if n == nil || n.Op != ir.OpActivation {
		return Match{Reason: "not an activation"}
	}
	if len(n.Inputs) != 1 {
		return Match{Reason: "activation does not have exactly one input"}
	}

	kind := NormalizeActivation(n.Meta.Activation)
	if !SupportedActivation(kind) {
		return Match{Reason: "unsupported activation " + strings.TrimSpace(n.Meta.Activation)}
	}

	producer, ok := g.Producer(n)
	if !ok {
		return Match{Reason: "input does not resolve to a producer"}
	}

	switch producer.Op {
	case ir.OpDense:
	case ir.OpInput:
		if kind != ActivationLinear {
			return Match{Reason: "input producer cannot host " + kind}
		}
	default:
		return Match{Reason: "producer op " + string(producer.Op) + " cannot absorb an activation"}
	}

	return Match{OK: true, Producer: producer, Activation: kind}
}

// Matches is the boolean form of MatchFusion.
func Matches(g *ir.Graph, n *ir.Node) bool {
	return MatchFusion(g, n).OK
}
