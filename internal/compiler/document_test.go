package compiler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actfuse/internal/ir"
)

const mlpYAML = `name: mlp
nodes:
  - name: x
    op: input
  - name: fc1
    op: dense
    inputs: [x]
    attrs:
      n_out: 16
  - name: relu1
    op: activation
    activation: relu
    inputs: [fc1]
    quant:
      output_precision: {width: 16, integer: 6, signed: true}
outputs: [relu1]
`

func TestDecodeYAML(t *testing.T) {
	doc, err := DecodeYAML([]byte(mlpYAML))
	require.NoError(t, err)

	assert.Equal(t, "mlp", doc.Name)
	require.Len(t, doc.Nodes, 3)
	assert.Equal(t, []string{"relu1"}, doc.Outputs)

	relu := doc.Nodes[2]
	assert.Equal(t, "activation", relu.Op)
	assert.Equal(t, "relu", relu.Activation)
	require.NotNil(t, relu.Quant)
	assert.Equal(t, &ir.Precision{Width: 16, Integer: 6, Signed: true}, relu.Quant.OutputPrecision)

	assert.Equal(t, 3, doc.Nodes[0].Line)
	assert.Equal(t, 5, doc.Nodes[1].Line)
	assert.Equal(t, 10, doc.Nodes[2].Line)
}

func TestDecodeYAMLRejectsUnknownFields(t *testing.T) {
	_, err := DecodeYAML([]byte("name: g\nnodes: []\nbogus: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestDecodeYAMLEmpty(t *testing.T) {
	_, err := DecodeYAML(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestDecodeJSON(t *testing.T) {
	src := `{
		"name": "mlp",
		"nodes": [
			{"name": "x", "op": "input"},
			{"name": "fc1", "op": "dense", "inputs": ["x"], "attrs": {"n_out": 9007199254740993}}
		],
		"outputs": ["fc1"]
	}`
	doc, err := DecodeJSON([]byte(src))
	require.NoError(t, err)

	g, err := Build(doc)
	require.NoError(t, err)
	fc1, ok := g.Lookup("fc1")
	require.True(t, ok)
	assert.Equal(t, ir.IRInt(9007199254740993), fc1.Meta.Attrs["n_out"], "large integers stay exact")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"name": "g", "nodes": [], "extra": true}`))
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	doc, err := DecodeYAML([]byte(mlpYAML))
	require.NoError(t, err)

	g, err := Build(doc)
	require.NoError(t, err)

	assert.Equal(t, "mlp", g.Name)
	assert.Equal(t, 3, g.Len())

	relu, _ := g.Lookup("relu1")
	p, ok := g.Producer(relu)
	require.True(t, ok)
	assert.Equal(t, "fc1", p.Name)

	fc1, _ := g.Lookup("fc1")
	assert.Equal(t, ir.IRInt(16), fc1.Meta.Attrs["n_out"])
	assert.Nil(t, fc1.Meta.Quant)

	outs := g.Outputs()
	require.Len(t, outs, 1)
	assert.Equal(t, "relu1", outs[0].Name)
}

func TestBuildForwardReferences(t *testing.T) {
	doc := &GraphDoc{
		Name: "g",
		Nodes: []NodeDoc{
			{Name: "a", Op: "activation", Activation: "relu", Inputs: []string{"d"}},
			{Name: "d", Op: "dense"},
		},
	}
	g, err := Build(doc)
	require.NoError(t, err)

	a, _ := g.Lookup("a")
	p, ok := g.Producer(a)
	require.True(t, ok)
	assert.Equal(t, "d", p.Name)
}

func TestBuildCollectsDocumentErrors(t *testing.T) {
	doc := &GraphDoc{
		Name: "bad",
		Nodes: []NodeDoc{
			{Name: "x", Op: "input", Line: 3},
			{Name: "x", Op: "dense", Line: 5},
			{Name: "", Op: "dense"},
			{Name: "d", Inputs: []string{"ghost"}},
			{Name: "f", Op: "dense", Attrs: map[string]any{"scale": 0.5}},
			{Name: "t", Op: "dense", Traits: []TraitDoc{{Kind: ""}}},
		},
		Outputs: []string{"nowhere"},
	}

	_, err := Build(doc)
	require.Error(t, err)
	assert.True(t, IsDocumentError(err))

	var de *DocumentError
	require.ErrorAs(t, err, &de)

	codes := make([]string, len(de.Errors))
	for i, ve := range de.Errors {
		codes[i] = ve.Code
	}
	assert.Equal(t, []string{
		ErrDuplicateNodeName, // second x
		ErrMissingField,      // empty name
		ErrMissingField,      // d has no op
		ErrInvalidAttribute,  // float attr
		ErrMissingField,      // trait kind
		ErrDanglingInput,     // ghost
		ErrBadOutput,         // nowhere
	}, codes)
	assert.Equal(t, 5, de.Errors[0].Line)
	assert.Contains(t, err.Error(), "ghost")
}

func TestBuildAllowsAliasedOutputs(t *testing.T) {
	doc := &GraphDoc{
		Name:    "g",
		Nodes:   []NodeDoc{{Name: "d", Op: "dense"}},
		Outputs: []string{"d", "d"},
	}
	g, err := Build(doc)
	require.NoError(t, err)
	assert.Len(t, g.Outputs(), 2)
}

func TestBuildNilDocument(t *testing.T) {
	_, err := Build(nil)
	assert.True(t, IsDocumentError(err))
}

func TestFromGraphRoundTrip(t *testing.T) {
	doc, err := DecodeYAML([]byte(mlpYAML))
	require.NoError(t, err)
	g, err := Build(doc)
	require.NoError(t, err)

	fc1, _ := g.Lookup("fc1")
	fc1.SetTrait(ir.Trait{Kind: ir.TraitFusedActivation, Params: ir.IRObject{"activation": ir.IRString("relu")}})

	back := FromGraph(g)
	assert.Equal(t, "mlp", back.Name)
	require.Len(t, back.Nodes, 3)
	assert.Equal(t, []TraitDoc{{Kind: ir.TraitFusedActivation, Params: map[string]any{"activation": "relu"}}}, back.Nodes[1].Traits)

	g2, err := Build(back)
	require.NoError(t, err)
	assert.Equal(t, ir.MustGraphHash(g), ir.MustGraphHash(g2))
}

func TestFromGraphSkipsRemovedNodes(t *testing.T) {
	doc, err := DecodeYAML([]byte(mlpYAML))
	require.NoError(t, err)
	g, err := Build(doc)
	require.NoError(t, err)

	relu, _ := g.Lookup("relu1")
	require.NoError(t, g.RemoveNode(relu.ID))

	back := FromGraph(g)
	require.Len(t, back.Nodes, 2)
	assert.Equal(t, []string{"fc1"}, back.Outputs)
}

func TestEncodeYAMLRoundTrip(t *testing.T) {
	doc, err := DecodeYAML([]byte(mlpYAML))
	require.NoError(t, err)
	g, err := Build(doc)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeYAML(&buf, FromGraph(g)))

	again, err := DecodeYAML(buf.Bytes())
	require.NoError(t, err)
	g2, err := Build(again)
	require.NoError(t, err)
	assert.Equal(t, ir.MustGraphHash(g), ir.MustGraphHash(g2))
}

func TestEncodeJSONRoundTrip(t *testing.T) {
	doc, err := DecodeYAML([]byte(mlpYAML))
	require.NoError(t, err)
	g, err := Build(doc)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, FromGraph(g)))
	assert.Contains(t, buf.String(), `"output_precision"`)

	again, err := DecodeJSON(buf.Bytes())
	require.NoError(t, err)
	g2, err := Build(again)
	require.NoError(t, err)
	assert.Equal(t, ir.MustGraphHash(g), ir.MustGraphHash(g2))
}
