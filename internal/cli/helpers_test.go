package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const mlpYAML = `name: mlp
nodes:
  - name: x
    op: input
  - name: d1
    op: dense
    inputs: [x]
    attrs: {units: 64}
  - name: a1
    op: activation
    activation: relu
    inputs: [d1]
    quant:
      output_precision: {width: 16, integer: 6, signed: true}
  - name: d2
    op: dense
    inputs: [a1]
  - name: a2
    op: activation
    activation: linear
    inputs: [d2]
    quant:
      output_precision: {width: 8, integer: 8, signed: false}
outputs: [a2]
`

// unquantizedYAML has a fusable activation without an output precision.
const unquantizedYAML = `name: raw
nodes:
  - name: x
    op: input
  - name: d
    op: dense
    inputs: [x]
  - name: a
    op: activation
    activation: ReLU
    inputs: [d]
outputs: [a]
`

// chainYAML needs two fixpoint iterations to fuse both activations.
const chainYAML = `name: chain
nodes:
  - name: x
    op: input
  - name: d
    op: dense
    inputs: [x]
  - name: lin
    op: activation
    activation: linear
    inputs: [d]
    quant:
      output_precision: {width: 12, integer: 4, signed: true}
  - name: r
    op: activation
    activation: relu
    inputs: [lin]
    quant:
      output_precision: {width: 8, integer: 3, signed: true}
outputs: [r]
`

const illFormedYAML = `name: broken
nodes:
  - name: x
    op: input
  - name: y
    op: input
  - name: a
    op: activation
    activation: relu
    inputs: [x, y]
`

func writeModelFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the full root command so persistent flags and logging setup
// apply as they would from main.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}
