// Package store provides the SQLite-backed run journal for actfuse.
//
// The journal is append-mostly and records:
//   - Runs: one row per pipeline run over a graph, with its status and the
//     graph fingerprint before and after
//   - Pass invocations: one row per pass executed within a run
//   - Rewrites: the individual graph rewrites performed by an invocation
//
// # Critical Patterns
//
// Logical Time
//   - Runs and pass invocations are ordered by seq (logical clock), NEVER by
//     timestamps
//   - Run seq is assigned by the store at BeginRun; pass seq comes from the
//     pipeline driver's clock
//
// Deterministic Query Results
//   - Every list query orders by seq ASC, id ASC COLLATE BINARY (or ordinal
//     for rewrites)
//
// Atomic Pass Records
//   - A pass invocation and its rewrites are written in one transaction
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Precision values are stored as RFC 8785 canonical JSON produced by
// internal/ir.
package store
