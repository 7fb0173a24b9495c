package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/actfuse/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run record with minimal required fields.
func createTestRun(id, graphName string) ir.RunRecord {
	return ir.RunRecord{
		ID:              id,
		GraphName:       graphName,
		Status:          ir.RunStatusRunning,
		GraphHashBefore: "hash-before",
		ToolVersion:     ir.ToolVersion,
		IRVersion:       ir.IRVersion,
	}
}
