package ir

// NOTE: These are journal records, not part of the graph IR. They are
// produced by the pipeline driver and persisted by the store.

// RunStatus values.
const (
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusFailed  = "failed"
)

// RunRecord describes one pipeline run over one graph.
type RunRecord struct {
	ID              string `json:"id"` // UUIDv7
	GraphName       string `json:"graph_name"`
	Seq             int64  `json:"seq"` // assigned by the store, logical order of runs
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
	GraphHashBefore string `json:"graph_hash_before"`
	GraphHashAfter  string `json:"graph_hash_after,omitempty"`
	ToolVersion     string `json:"tool_version"`
	IRVersion       string `json:"ir_version"`
}

// PassRecord describes one pass invocation within a run.
type PassRecord struct {
	ID         int64           `json:"id,omitempty"` // Auto-increment (store FK)
	Seq        int64           `json:"seq"`          // Logical clock within the run
	Iteration  int             `json:"iteration"`    // 1-based fixpoint iteration
	PassName   string          `json:"pass_name"`
	Changed    bool            `json:"changed"`
	HashBefore string          `json:"hash_before"`
	HashAfter  string          `json:"hash_after"`
	Rewrites   []RewriteRecord `json:"rewrites,omitempty"`
}

// Rewrite kinds.
const (
	RewriteFuseActivation = "fuse_activation"
	RewriteQuantize       = "quantize"
)

// RewriteRecord describes a single graph rewrite performed by a pass.
// For fusions Node was absorbed into Into; for quantize Into is empty and
// Precision is the value assigned to Node.
type RewriteRecord struct {
	Kind       string     `json:"kind"`
	Node       string     `json:"node"`
	Into       string     `json:"into,omitempty"`
	Activation string     `json:"activation,omitempty"`
	Precision  *Precision `json:"precision,omitempty"`
}
