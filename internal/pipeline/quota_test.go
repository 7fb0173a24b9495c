package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterationQuota_WithinLimit(t *testing.T) {
	q := NewIterationQuota(4)

	for i := 0; i < 4; i++ {
		assert.NoError(t, q.Check("run-1"), "iteration %d should be allowed", i+1)
	}

	assert.Equal(t, 4, q.Current())
	assert.Equal(t, 4, q.MaxIterations())
}

func TestIterationQuota_ExceedsLimit(t *testing.T) {
	q := NewIterationQuota(2)
	require.NoError(t, q.Check("run-1"))
	require.NoError(t, q.Check("run-1"))

	err := q.Check("run-1")
	require.Error(t, err)

	var iterErr *IterationsExceededError
	require.ErrorAs(t, err, &iterErr)
	assert.Equal(t, "run-1", iterErr.RunID)
	assert.Equal(t, 3, iterErr.Iterations)
	assert.Equal(t, 2, iterErr.Limit)
	assert.Contains(t, err.Error(), "did not reach a fixed point")
}

func TestIsIterationsExceededError_Wrapped(t *testing.T) {
	err := fmt.Errorf("driver: %w", &IterationsExceededError{RunID: "r", Iterations: 2, Limit: 1})
	assert.True(t, IsIterationsExceededError(err))
	assert.True(t, IsIterationsExceeded(err))
	assert.False(t, IsIterationsExceededError(fmt.Errorf("other")))
}
