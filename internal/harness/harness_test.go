package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actfuse/internal/compiler"
	"github.com/roach88/actfuse/internal/pipeline"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{"fuse_mlp", "quantize_then_fuse", "chain_fixpoint"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/quantize_then_fuse.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalSnapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ExpectedErrorRecorded(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/missing_quant.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.True(t, pipeline.IsPreconditionViolation(result.RunErr))
	assert.Empty(t, result.Trace, "failed pass invocations are not journaled")
}

func TestRun_ErrorExpectationMismatch(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/missing_quant.yaml")
	require.NoError(t, err)

	scenario.ExpectError = ""
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "unexpected pipeline error")

	scenario.ExpectError = string(pipeline.ErrCodeIterationsExceeded)
	result, err = Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected pipeline error ITERATIONS_EXCEEDED")
}

func TestRun_UnexpectedSuccess(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/fuse_mlp.yaml")
	require.NoError(t, err)

	scenario.ExpectError = string(pipeline.ErrCodePreconditionViolated)
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "every run succeeded")
}

func TestRun_FailingAssertion(t *testing.T) {
	scenario := &Scenario{
		Name: "wrong",
		Graph: &compiler.GraphDoc{
			Name: "g",
			Nodes: []compiler.NodeDoc{
				{Name: "x", Op: "input"},
				{Name: "d", Op: "dense", Inputs: []string{"x"}},
			},
			Outputs: []string{"d"},
		},
		Assertions: []Assertion{
			{Type: AssertNodeCount, Count: 2},
			{Type: AssertHasTrait, Node: "d"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "has_trait")
}

func TestRun_IllFormedModel(t *testing.T) {
	scenario := &Scenario{
		Name: "ill",
		Graph: &compiler.GraphDoc{
			Name:  "g",
			Nodes: []compiler.NodeDoc{{Name: "a", Op: "activation", Activation: "relu"}},
		},
		Assertions: []Assertion{{Type: AssertWellFormed}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not well-formed")
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "empty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}
