// Package harness provides conformance testing for the actfuse pipeline.
//
// A scenario names a model, runs the standard pipeline over it one or more
// times, and checks the resulting graph against a list of assertions. Every
// run is journaled to an in-memory store so scenarios can also assert on the
// rewrites that were performed.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	model: ../models/mlp.yaml          # or an inline graph: {...}
//	default_precision: "fixed<16,6>"   # registers the quantize pass
//	invocations: 1
//	fixpoint: false
//	expect_error: PRECONDITION_VIOLATED
//	assertions:
//	  - type: node_absent
//	    node: a1
//	  - type: has_trait
//	    node: d1
//	    activation: relu
//	  - type: precision
//	    node: d1
//	    precision: "fixed<16,6>"
//
// Unknown fields are rejected, so a typo such as "assertion:" fails loading.
//
// # Assertion Types
//
//   - node_absent / node_present: a node with the name does / does not exist
//   - has_trait: the node carries a fused_activation trait, optionally of a kind
//   - no_trait: the node carries no fused_activation trait
//   - precision: the node's output precision ("fixed<w,i>", or "none")
//   - consumes: the node's inputs, in order
//   - outputs: the graph outputs, in order
//   - node_count: number of nodes in the graph
//   - rewrite_count: journaled rewrites, optionally filtered by kind
//   - well_formed: the graph passes compiler.Validate
//
// # Deterministic Testing
//
// Run ids come from testutil.SequentialRunIDs seeded with the scenario name,
// pass invocations are stamped by the pipeline's logical clock, and golden
// snapshots use canonical JSON without fingerprints. The same scenario always
// produces byte-identical snapshots.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/fuse_relu.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
