package ir

// Version constants for IR schema and tool.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// ToolVersion is the actfuse version.
	ToolVersion = "0.1.0"
)
