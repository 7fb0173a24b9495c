package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasses(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"fuse only", []string{"passes"}, "1. fuse_activation\n"},
		{"with quantize", []string{"passes", "--default-precision", "ufixed<8,0>"}, "1. quantize\n2. fuse_activation\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stdout)
		})
	}
}

func TestPasses_JSON(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "passes", "--default-precision", "fixed<16,6>")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   []PassInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []PassInfo{{1, "quantize"}, {2, "fuse_activation"}}, resp.Data)
}

func TestPasses_BadPrecision(t *testing.T) {
	_, _, err := execute(t, "passes", "--default-precision", "fixed<4,9>")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
