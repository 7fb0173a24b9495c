package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "actfuse", cmd.Use)
	assert.Contains(t, cmd.Long, "fuse_activation passes")
	assert.Contains(t, cmd.Long, "fused_activation trait")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"fuse", "validate", "passes", "history", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestFuseCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	fuseCmd, _, err := cmd.Find([]string{"fuse"})
	require.NoError(t, err)

	outputFlag := fuseCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)

	maxFlag := fuseCmd.Flags().Lookup("max-iterations")
	require.NotNil(t, maxFlag)
	assert.Equal(t, "16", maxFlag.DefValue)

	for _, name := range []string{"db", "fixpoint", "dry-run", "default-precision"} {
		assert.NotNil(t, fuseCmd.Flags().Lookup(name), name)
	}
}

func TestHistoryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	historyCmd, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)

	dbFlag := historyCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, []string{"true"}, dbFlag.Annotations[cobra.BashCompOneRequiredFlag])

	assert.NotNil(t, historyCmd.Flags().Lookup("node"))
	assert.NotNil(t, historyCmd.Flags().Lookup("limit"))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "passes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestVerboseLogsToStderr(t *testing.T) {
	path := writeModelFile(t, "mlp.yaml", mlpYAML)

	stdout, stderr, err := execute(t, "--verbose", "--format", "json", "fuse", path)
	require.NoError(t, err)

	assert.Contains(t, stderr, "activation fused")
	assert.Contains(t, stderr, "level=DEBUG")
	assert.NotContains(t, stdout, "activation fused")
}
