package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actfuse/internal/ir"
)

const mlpCUE = `
graph: {
	name: "mlp"
	nodes: [
		{name: "x", op: "input"},
		{name: "fc1", op: "dense", inputs: ["x"], attrs: {n_out: 16, use_bias: true, shape: [1, 16]}},
		{
			name:       "relu1"
			op:         "activation"
			activation: "relu"
			inputs: ["fc1"]
			quant: output_precision: {width: 16, integer: 6, signed: true}
		},
	]
	outputs: ["relu1"]
}
`

func TestCompileCUE(t *testing.T) {
	doc, err := CompileCUE([]byte(mlpCUE), "mlp.cue")
	require.NoError(t, err)

	assert.Equal(t, "mlp", doc.Name)
	require.Len(t, doc.Nodes, 3)
	assert.Equal(t, []string{"relu1"}, doc.Outputs)

	fc1 := doc.Nodes[1]
	assert.Equal(t, []string{"x"}, fc1.Inputs)
	assert.Equal(t, map[string]any{
		"n_out":    int64(16),
		"use_bias": true,
		"shape":    []any{int64(1), int64(16)},
	}, fc1.Attrs)

	relu := doc.Nodes[2]
	assert.Equal(t, "relu", relu.Activation)
	require.NotNil(t, relu.Quant)
	assert.Equal(t, &ir.Precision{Width: 16, Integer: 6, Signed: true}, relu.Quant.OutputPrecision)
	assert.Positive(t, relu.Line)

	g, err := Build(doc)
	require.NoError(t, err)
	assert.Empty(t, Validate(g))
}

func TestCompileCUEMatchesYAML(t *testing.T) {
	fromCUE, err := CompileCUE([]byte(mlpCUE), "mlp.cue")
	require.NoError(t, err)
	g1, err := Build(fromCUE)
	require.NoError(t, err)

	fromYAML, err := DecodeYAML([]byte(`name: mlp
nodes:
  - {name: x, op: input}
  - {name: fc1, op: dense, inputs: [x], attrs: {n_out: 16, use_bias: true, shape: [1, 16]}}
  - name: relu1
    op: activation
    activation: relu
    inputs: [fc1]
    quant: {output_precision: {width: 16, integer: 6, signed: true}}
outputs: [relu1]
`))
	require.NoError(t, err)
	g2, err := Build(fromYAML)
	require.NoError(t, err)

	assert.Equal(t, ir.MustGraphHash(g1), ir.MustGraphHash(g2))
}

func TestCompileCUEMissingGraph(t *testing.T) {
	_, err := CompileCUE([]byte(`other: 1`), "x.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, GraphPath, ce.Field)
}

func TestCompileCUESyntaxError(t *testing.T) {
	_, err := CompileCUE([]byte("graph: {\n\tname: \n"), "broken.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid(), "syntax errors carry a position")
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestCompileGraphMissingName(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`graph: nodes: []`)
	require.NoError(t, v.Err())

	_, err := CompileGraph(v.LookupPath(cue.ParsePath("graph")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestCompileGraphMissingNodes(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`graph: name: "g"`)
	require.NoError(t, v.Err())

	_, err := CompileGraph(v.LookupPath(cue.ParsePath("graph")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nodes")
}

func TestCompileGraphRejectsFloatAttrs(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`graph: {
		name: "g"
		nodes: [{name: "d", op: "dense", attrs: {scale: 0.5}}]
	}`)
	require.NoError(t, v.Err())

	_, err := CompileGraph(v.LookupPath(cue.ParsePath("graph")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestCompileGraphRejectsIncompleteAttrs(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`graph: {
		name: "g"
		nodes: [{name: "d", op: "dense", attrs: {n_out: int}}]
	}`)
	require.NoError(t, v.Err())

	_, err := CompileGraph(v.LookupPath(cue.ParsePath("graph")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concrete")
}

func TestCompileGraphTraits(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`graph: {
		name: "g"
		nodes: [{
			name: "d"
			op: "dense"
			traits: [{kind: "fused_activation", params: {activation: "relu"}}]
		}]
	}`)
	require.NoError(t, v.Err())

	doc, err := CompileGraph(v.LookupPath(cue.ParsePath("graph")))
	require.NoError(t, err)
	require.Len(t, doc.Nodes[0].Traits, 1)
	assert.Equal(t, TraitDoc{Kind: "fused_activation", Params: map[string]any{"activation": "relu"}}, doc.Nodes[0].Traits[0])
}

func TestCompileErrorWithoutPosition(t *testing.T) {
	e := &CompileError{Field: "nodes", Message: "nodes are required"}
	assert.Equal(t, "nodes: nodes are required", e.Error())
}
