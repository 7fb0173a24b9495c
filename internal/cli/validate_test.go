package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_WellFormed(t *testing.T) {
	path := writeModelFile(t, "mlp.yaml", mlpYAML)

	stdout, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Graph mlp is well-formed (5 nodes)")
}

func TestValidate_WellFormedJSON(t *testing.T) {
	path := writeModelFile(t, "mlp.yaml", mlpYAML)

	stdout, _, err := execute(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "mlp", resp.Data.Graph)
	assert.Equal(t, 5, resp.Data.Nodes)
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	path := writeModelFile(t, "broken.yaml", `name: broken
nodes:
  - name: x
    op: input
    inputs: [d]
  - name: d
    op: dense
    inputs: [x]
  - name: a
    op: activation
    inputs: [d, x]
`)

	stdout, _, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)

	var codes []string
	for _, e := range resp.Data.Errors {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, "E202")
	assert.Contains(t, codes, "E203")
	assert.Contains(t, codes, "E204")
	assert.Contains(t, codes, "E205")
}

func TestValidate_DocumentErrors(t *testing.T) {
	path := writeModelFile(t, "dup.yaml", `name: dup
nodes:
  - name: x
    op: input
  - name: x
    op: input
  - name: a
    op: activation
    activation: relu
    inputs: [missing]
`)

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ Validation failed")
	assert.Contains(t, stdout, "E207")
	assert.Contains(t, stdout, "E201")
}

func TestValidate_CUEDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graph.cue"), []byte(`package model

graph: {
	name: "tiny"
	nodes: [
		{name: "x", op: "input"},
		{name: "d", op: "dense", inputs: ["x"]},
	]
	outputs: ["d"]
}
`), 0o644))

	stdout, _, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Graph tiny is well-formed (2 nodes)")
}

func TestValidate_LoadErrors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		stdout, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "none.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, stdout, "Error [E005]")
	})

	t.Run("empty directory", func(t *testing.T) {
		stdout, _, err := execute(t, "validate", t.TempDir())
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, stdout, "Error [E003]")
	})

	t.Run("cue syntax error carries line", func(t *testing.T) {
		path := writeModelFile(t, "bad.cue", "graph: {\n\tname: \"x\"\n\tnodes: [\n")
		stdout, _, err := execute(t, "validate", path)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, stdout, "Error [E004]")
		assert.Contains(t, stdout, "(line ")
	})
}
