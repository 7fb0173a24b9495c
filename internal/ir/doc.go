// Package ir provides the logical dataflow graph that optimizer passes rewrite.
//
// This package contains the graph, node, metadata and trait types plus the
// canonical serialization used for fingerprints. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Nodes are addressed by stable NodeID values (arena indices). Removing a
//     node never changes the identity of any other node.
//   - Every input edge references exactly one producer.
//   - Removing a node re-links its consumers and graph outputs to its single
//     producer, so the graph never holds a dangling reference.
//   - NO float types in metadata or trait parameters - precision descriptors
//     and attributes use int64 so fingerprints stay deterministic.
//   - All JSON tags use snake_case
package ir
