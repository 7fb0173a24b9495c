package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/actfuse/internal/ir"
)

// Node describes one node for BuildGraph.
type Node struct {
	Name       string
	Op         ir.OpKind
	Inputs     []string
	Activation string

	// Precision, when set, becomes the node's quant.output_precision.
	Precision *ir.Precision

	// EmptyQuant attaches a quant record with no precision.
	EmptyQuant bool
}

// BuildGraph builds a graph from node descriptions in order, then connects
// inputs and declares outputs. It fails the test on any construction error.
//
// Example:
//
//	g := testutil.BuildGraph(t, "mlp", []testutil.Node{
//		{Name: "x", Op: ir.OpInput},
//		{Name: "d1", Op: ir.OpDense, Inputs: []string{"x"}},
//		{Name: "a1", Op: ir.OpActivation, Activation: "relu", Inputs: []string{"d1"}, Precision: testutil.Prec(16, 6)},
//	}, "a1")
func BuildGraph(t testing.TB, name string, nodes []Node, outputs ...string) *ir.Graph {
	t.Helper()

	g := ir.NewGraph(name)
	for _, nd := range nodes {
		meta := ir.Metadata{Activation: nd.Activation}
		switch {
		case nd.Precision != nil:
			p := *nd.Precision
			meta.Quant = &ir.QuantInfo{OutputPrecision: &p}
		case nd.EmptyQuant:
			meta.Quant = &ir.QuantInfo{}
		}
		_, err := g.AddNode(nd.Name, nd.Op, meta)
		require.NoError(t, err, "add node %s", nd.Name)
	}
	for _, nd := range nodes {
		for _, in := range nd.Inputs {
			require.NoError(t, g.Connect(nd.Name, in), "connect %s <- %s", nd.Name, in)
		}
	}
	require.NoError(t, g.SetOutputs(outputs...))
	return g
}

// Prec returns a signed fixed-point precision.
func Prec(width, integer int64) *ir.Precision {
	return &ir.Precision{Width: width, Integer: integer, Signed: true}
}

// MustNode returns the live node with the given name or fails the test.
func MustNode(t testing.TB, g *ir.Graph, name string) *ir.Node {
	t.Helper()
	n, ok := g.Lookup(name)
	require.True(t, ok, "node %s not found", name)
	return n
}

// InputNames returns the names of n's producers, one per input slot.
func InputNames(g *ir.Graph, n *ir.Node) []string {
	names := make([]string, len(n.Inputs))
	for i, id := range n.Inputs {
		names[i] = g.NameOf(id)
	}
	return names
}
