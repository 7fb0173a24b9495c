package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/actfuse/internal/ir"
)

// Snapshot is the golden form of a scenario outcome: the final graph and the
// journaled pass invocations. Fingerprints are left out so that snapshots
// stay readable and reviewable.
type Snapshot struct {
	ScenarioName string
	Graph        *ir.Graph
	Trace        []TraceEvent
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		rewrites := make([]any, len(ev.Rewrites))
		for j, rw := range ev.Rewrites {
			rewrites[j] = rewriteValue(rw)
		}
		trace[i] = map[string]any{
			"run":       ev.Run,
			"seq":       ev.Seq,
			"iteration": ev.Iteration,
			"pass":      ev.Pass,
			"changed":   ev.Changed,
			"rewrites":  rewrites,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"graph":         ir.Snapshot(s.Graph),
		"trace":         trace,
	}
}

func rewriteValue(rw ir.RewriteRecord) map[string]any {
	m := map[string]any{
		"kind": rw.Kind,
		"node": rw.Node,
	}
	if rw.Into != "" {
		m["into"] = rw.Into
	}
	if rw.Activation != "" {
		m["activation"] = rw.Activation
	}
	if rw.Precision != nil {
		m["precision"] = ir.PrecisionValue(*rw.Precision)
	}
	return m
}

// MarshalSnapshot returns the canonical JSON form of a scenario outcome.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	s := Snapshot{ScenarioName: name, Graph: result.Graph, Trace: result.Trace}
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check result.Pass. Returns an
// error if the scenario cannot be run; a snapshot mismatch fails t through
// goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
