package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actfuse/internal/ir"
)

// journaledDB fuses the mlp model twice (the second run changes nothing)
// and fails once on an unquantized model, all into one journal.
func journaledDB(t *testing.T) (db string, runIDs []string) {
	t.Helper()
	dir := t.TempDir()
	db = filepath.Join(dir, "runs.db")
	mlp := writeModelFile(t, "mlp.yaml", mlpYAML)
	fused := filepath.Join(dir, "fused.yaml")

	stdout, _, err := execute(t, "--format", "json", "fuse", mlp, "--db", db, "-o", fused)
	require.NoError(t, err)
	runIDs = append(runIDs, decodeFuse(t, stdout).RunID)

	stdout, _, err = execute(t, "--format", "json", "fuse", fused, "--db", db)
	require.NoError(t, err)
	runIDs = append(runIDs, decodeFuse(t, stdout).RunID)

	stdout, _, err = execute(t, "--format", "json", "fuse", writeModelFile(t, "raw.yaml", unquantizedYAML), "--db", db)
	require.Error(t, err)
	runIDs = append(runIDs, decodeFuse(t, stdout).RunID)

	return db, runIDs
}

func TestHistory_ListRuns(t *testing.T) {
	db, ids := journaledDB(t)

	stdout, _, err := execute(t, "--format", "json", "history", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data []ir.RunRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 3)
	for i, run := range resp.Data {
		assert.Equal(t, ids[i], run.ID)
		assert.Equal(t, int64(i+1), run.Seq)
	}
	assert.Equal(t, ir.RunStatusOK, resp.Data[0].Status)
	assert.Equal(t, ir.RunStatusFailed, resp.Data[2].Status)
	assert.Contains(t, resp.Data[2].Error, "PRECONDITION_VIOLATED")

	stdout, _, err = execute(t, "history", "--db", db, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, ids[2])
	assert.NotContains(t, stdout, ids[0])
	assert.Contains(t, stdout, "error: ")
}

func TestHistory_ShowRun(t *testing.T) {
	db, ids := journaledDB(t)

	stdout, _, err := execute(t, "--format", "json", "history", "--db", db, ids[0])
	require.NoError(t, err)

	var resp struct {
		Data RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "mlp", resp.Data.Run.GraphName)
	require.Len(t, resp.Data.Passes, 1)
	assert.True(t, resp.Data.Passes[0].Changed)
	require.Len(t, resp.Data.Passes[0].Rewrites, 2)
	assert.Equal(t, "a2", resp.Data.Passes[0].Rewrites[0].Node)

	stdout, _, err = execute(t, "history", "--db", db, ids[0])
	require.NoError(t, err)
	assert.Contains(t, stdout, "Run "+ids[0]+" (seq 1)")
	assert.Contains(t, stdout, "fuse_activation a1 -> d1 (relu, fixed<16,6>)")
}

func TestHistory_NodeRewrites(t *testing.T) {
	db, ids := journaledDB(t)

	stdout, _, err := execute(t, "--format", "json", "history", "--db", db, "--node", "d1")
	require.NoError(t, err)

	var resp struct {
		Data []NodeHistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, ids[0], resp.Data[0].RunID)
	assert.Equal(t, "a1", resp.Data[0].Rewrite.Node)
	assert.Equal(t, "d1", resp.Data[0].Rewrite.Into)

	stdout, _, err = execute(t, "history", "--db", db, "--node", "x")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No rewrites touch node x.")
}

func TestHistory_Errors(t *testing.T) {
	db, ids := journaledDB(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing database", []string{"history", "--db", filepath.Join(t.TempDir(), "none.db")}},
		{"unknown run", []string{"history", "--db", db, "no-such-run"}},
		{"run and node", []string{"history", "--db", db, ids[0], "--node", "d1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}

	_, _, err := execute(t, "history")
	require.Error(t, err, "--db is required")
}
