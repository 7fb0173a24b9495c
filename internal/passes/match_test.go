package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/actfuse/internal/ir"
	"github.com/roach88/actfuse/internal/testutil"
)

func TestNormalizeActivation(t *testing.T) {
	assert.Equal(t, "relu", NormalizeActivation("ReLU"))
	assert.Equal(t, "linear", NormalizeActivation("  LINEAR\t"))
	assert.Equal(t, "", NormalizeActivation(""))
	assert.True(t, SupportedActivation("relu"))
	assert.True(t, SupportedActivation("linear"))
	assert.False(t, SupportedActivation("sigmoid"))
	assert.False(t, SupportedActivation("ReLU"), "callers normalize first")
}

func TestMatchFusion(t *testing.T) {
	tests := []struct {
		name     string
		producer ir.OpKind
		kind     string
		want     bool
	}{
		{"dense relu", ir.OpDense, "relu", true},
		{"dense linear", ir.OpDense, "linear", true},
		{"dense mixed case", ir.OpDense, "ReLU", true},
		{"dense unsupported", ir.OpDense, "sigmoid", false},
		{"dense empty kind", ir.OpDense, "", false},
		{"input linear", ir.OpInput, "linear", true},
		{"input linear mixed case", ir.OpInput, " Linear ", true},
		{"input relu", ir.OpInput, "relu", false},
		{"activation producer", ir.OpActivation, "relu", false},
		{"opaque producer", "conv2d", "relu", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testutil.BuildGraph(t, "g", []testutil.Node{
				{Name: "p", Op: tt.producer, Activation: "relu"},
				{Name: "a", Op: ir.OpActivation, Activation: tt.kind, Inputs: []string{"p"}},
			})
			a := testutil.MustNode(t, g, "a")

			m := MatchFusion(g, a)
			assert.Equal(t, tt.want, m.OK, m.Reason)
			assert.Equal(t, tt.want, Matches(g, a))
			if tt.want {
				assert.Equal(t, "p", m.Producer.Name)
				assert.Equal(t, NormalizeActivation(tt.kind), m.Activation)
				assert.Empty(t, m.Reason)
			} else {
				assert.Nil(t, m.Producer)
				assert.NotEmpty(t, m.Reason)
			}
		})
	}
}

func TestMatchFusionStructuralAnomalies(t *testing.T) {
	g := testutil.BuildGraph(t, "g", []testutil.Node{
		{Name: "x", Op: ir.OpInput},
		{Name: "d", Op: ir.OpDense, Inputs: []string{"x"}},
		{Name: "orphan", Op: ir.OpActivation, Activation: "relu"},
		{Name: "pair", Op: ir.OpActivation, Activation: "relu", Inputs: []string{"d", "x"}},
	})

	assert.False(t, Matches(g, testutil.MustNode(t, g, "orphan")), "zero inputs")
	assert.False(t, Matches(g, testutil.MustNode(t, g, "pair")), "two inputs")
	assert.False(t, Matches(g, testutil.MustNode(t, g, "d")), "not an activation")
	assert.False(t, Matches(g, nil))
}

func TestMatchFusionDanglingProducer(t *testing.T) {
	g := testutil.BuildGraph(t, "g", []testutil.Node{
		{Name: "a", Op: ir.OpActivation, Activation: "relu"},
	})
	a := testutil.MustNode(t, g, "a")
	a.Inputs = []ir.NodeID{99}

	m := MatchFusion(g, a)
	assert.False(t, m.OK)
	assert.Contains(t, m.Reason, "producer")
}

func TestMatchFusionIsPure(t *testing.T) {
	g := testutil.BuildGraph(t, "g", []testutil.Node{
		{Name: "x", Op: ir.OpInput},
		{Name: "d", Op: ir.OpDense, Inputs: []string{"x"}},
		{Name: "a", Op: ir.OpActivation, Activation: "relu", Inputs: []string{"d"}, Precision: testutil.Prec(16, 6)},
	}, "a")
	before := ir.MustGraphHash(g)

	for _, n := range g.Nodes() {
		MatchFusion(g, n)
	}

	assert.Equal(t, before, ir.MustGraphHash(g))
}
