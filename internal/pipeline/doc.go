// Package pipeline orders registered passes and drives them over a graph.
//
// ARCHITECTURE:
//
// A Registry holds passes by unique name together with their ordering
// constraints ("after quantize"). Order resolves the constraints into one
// deterministic sequence; registration order breaks ties.
//
// A Driver runs that sequence over a graph once, or repeatedly until no pass
// reports a change (fixpoint mode). Every pass invocation is stamped with a
// sequence number from a logical Clock and recorded with the graph
// fingerprint before and after it ran. When a Journal is configured the run
// and each invocation are persisted.
//
// CRITICAL PATTERNS:
//
// Logical Clock
// Pass invocations are ordered by Clock.Next(), never by wall-clock time.
//
// Deterministic Scheduling
// Pass order depends only on registration order and constraints. Passes run
// sequentially on the calling goroutine and own the graph while they run.
//
// Termination
// Fixpoint mode is bounded by an iteration quota; exceeding it fails the run.
package pipeline
