package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/actfuse/internal/compiler"
	"github.com/roach88/actfuse/internal/ir"
	"github.com/roach88/actfuse/internal/pipeline"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the path to a model file or CUE package directory.
	// Relative paths are resolved against the scenario file location.
	Model string `yaml:"model,omitempty"`

	// Graph is an inline model, used when Model is empty.
	Graph *compiler.GraphDoc `yaml:"graph,omitempty"`

	// DefaultPrecision registers the quantize pass with this precision,
	// e.g. "fixed<16,6>". Without it only fuse_activation runs.
	DefaultPrecision string `yaml:"default_precision,omitempty"`

	// Invocations is the number of pipeline runs over the graph. Default 1.
	Invocations int `yaml:"invocations,omitempty"`

	// Fixpoint repeats the passes within each run until nothing changes.
	Fixpoint bool `yaml:"fixpoint,omitempty"`

	// MaxIterations bounds fixpoint runs. Zero keeps the pipeline default.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// ExpectError is the pipeline error code the run must fail with, e.g.
	// PRECONDITION_VIOLATED. Empty means every run must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the final graph and the journal.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the final graph or journal.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Node names the node under test.
	Node string `yaml:"node,omitempty"`

	// Activation is the expected fused activation kind (has_trait).
	Activation string `yaml:"activation,omitempty"`

	// Precision is the expected output precision, or "none" (precision).
	Precision string `yaml:"precision,omitempty"`

	// Inputs are the expected producer names, in order (consumes).
	Inputs []string `yaml:"inputs,omitempty"`

	// Outputs are the expected graph output names, in order (outputs).
	Outputs []string `yaml:"outputs,omitempty"`

	// Kind filters journaled rewrites (rewrite_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number (node_count, rewrite_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertNodeAbsent   = "node_absent"
	AssertNodePresent  = "node_present"
	AssertHasTrait     = "has_trait"
	AssertNoTrait      = "no_trait"
	AssertPrecision    = "precision"
	AssertConsumes     = "consumes"
	AssertOutputs      = "outputs"
	AssertNodeCount    = "node_count"
	AssertRewriteCount = "rewrite_count"
	AssertWellFormed   = "well_formed"
)

// PrecisionNone asserts that a node carries no output precision.
const PrecisionNone = "none"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the model path relative to the scenario BEFORE validation
	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) {
		scenario.Model = filepath.Join(filepath.Dir(path), scenario.Model)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without validating it. Model paths are
// left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// Validate checks that required fields are present and consistent.
func (s *Scenario) Validate() error {
	return validateScenario(s)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch {
	case s.Model == "" && s.Graph == nil:
		return fmt.Errorf("one of model or graph is required")
	case s.Model != "" && s.Graph != nil:
		return fmt.Errorf("model and graph are mutually exclusive")
	}
	if s.Model != "" {
		if _, err := os.Stat(s.Model); os.IsNotExist(err) {
			return fmt.Errorf("model not found: %s", s.Model)
		}
	}

	if s.Invocations < 0 {
		return fmt.Errorf("invocations must be non-negative")
	}
	if s.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative")
	}
	if s.DefaultPrecision != "" {
		if _, err := ir.ParsePrecision(s.DefaultPrecision); err != nil {
			return fmt.Errorf("default_precision: %w", err)
		}
	}

	switch pipeline.PassErrorCode(s.ExpectError) {
	case "",
		pipeline.ErrCodePreconditionViolated,
		pipeline.ErrCodePassFailed,
		pipeline.ErrCodeIterationsExceeded:
	default:
		return fmt.Errorf("expect_error: unknown error code %q", s.ExpectError)
	}

	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needNode := func() error {
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for %s", index, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertNodeAbsent, AssertNodePresent, AssertHasTrait, AssertNoTrait:
		return needNode()
	case AssertPrecision:
		if err := needNode(); err != nil {
			return err
		}
		if a.Precision == "" {
			return fmt.Errorf("assertions[%d]: precision is required for precision", index)
		}
		if a.Precision != PrecisionNone {
			if _, err := ir.ParsePrecision(a.Precision); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertConsumes:
		if err := needNode(); err != nil {
			return err
		}
		if len(a.Inputs) == 0 {
			return fmt.Errorf("assertions[%d]: inputs list is required for consumes", index)
		}
	case AssertOutputs:
		if len(a.Outputs) == 0 {
			return fmt.Errorf("assertions[%d]: outputs list is required for outputs", index)
		}
	case AssertNodeCount, AssertRewriteCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertWellFormed:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
