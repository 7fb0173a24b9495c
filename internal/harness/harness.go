package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/actfuse/internal/compiler"
	"github.com/roach88/actfuse/internal/ir"
	"github.com/roach88/actfuse/internal/pipeline"
	"github.com/roach88/actfuse/internal/store"
	"github.com/roach88/actfuse/internal/testutil"
)

// TraceEvent is one journaled pass invocation.
type TraceEvent struct {
	Run       string             `json:"run"`
	Seq       int64              `json:"seq"`
	Iteration int                `json:"iteration"`
	Pass      string             `json:"pass"`
	Changed   bool               `json:"changed"`
	Rewrites  []ir.RewriteRecord `json:"rewrites,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held and the error expectation matched.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Trace lists every pass invocation as read back from the journal, in
	// run order then seq order.
	Trace []TraceEvent `json:"trace"`

	// Graph is the graph after the last run.
	Graph *ir.Graph `json:"-"`

	// RunErr is the error that stopped the runs, if any.
	RunErr error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Harness runs one scenario against a fresh journal.
type Harness struct {
	store  *store.Store
	driver *pipeline.Driver
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal for isolation.
// Errors are returned only when the scenario cannot be set up (the model
// does not load, build or validate); pipeline failures and assertion
// failures are reported through the Result.
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	g, err := buildModel(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(scenario, st)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	result.Graph = g

	invocations := scenario.Invocations
	if invocations == 0 {
		invocations = 1
	}

	var runIDs []string
	for i := 0; i < invocations; i++ {
		report, err := h.driver.Run(ctx, g)
		if report != nil {
			runIDs = append(runIDs, report.RunID)
		}
		if err != nil {
			result.RunErr = err
			break
		}
	}

	checkExpectedError(scenario.ExpectError, result)

	for _, runID := range runIDs {
		passes, err := h.store.ReadPasses(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("read journal: %w", err)
		}
		for _, p := range passes {
			result.Trace = append(result.Trace, TraceEvent{
				Run:       runID,
				Seq:       p.Seq,
				Iteration: p.Iteration,
				Pass:      p.PassName,
				Changed:   p.Changed,
				Rewrites:  p.Rewrites,
			})
		}
	}

	for _, a := range scenario.Assertions {
		if err := checkAssertion(g, result.Trace, a); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

func newHarness(scenario *Scenario, st *store.Store) (*Harness, error) {
	var precision *ir.Precision
	if scenario.DefaultPrecision != "" {
		p, err := ir.ParsePrecision(scenario.DefaultPrecision)
		if err != nil {
			return nil, fmt.Errorf("default_precision: %w", err)
		}
		precision = &p
	}

	opts := []pipeline.Option{
		pipeline.WithJournal(st),
		pipeline.WithRunIDGenerator(testutil.NewSequentialRunIDs(scenario.Name)),
		pipeline.WithFixpoint(scenario.Fixpoint),
		pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	}
	if scenario.MaxIterations > 0 {
		opts = append(opts, pipeline.WithMaxIterations(scenario.MaxIterations))
	}

	return &Harness{
		store:  st,
		driver: pipeline.New(pipeline.NewDefaultRegistry(precision), opts...),
	}, nil
}

func buildModel(scenario *Scenario) (*ir.Graph, error) {
	doc := scenario.Graph
	if doc == nil {
		if scenario.Model == "" {
			return nil, errors.New("scenario has no model")
		}
		var err error
		if doc, err = compiler.Load(scenario.Model); err != nil {
			return nil, err
		}
	}

	g, err := compiler.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	if errs := compiler.Validate(g); len(errs) > 0 {
		return nil, fmt.Errorf("model %s is not well-formed: %w", g.Name, errs[0])
	}
	return g, nil
}

func checkExpectedError(expected string, result *Result) {
	err := result.RunErr
	switch {
	case expected == "" && err != nil:
		result.AddError(fmt.Sprintf("unexpected pipeline error: %v", err))
	case expected != "" && err == nil:
		result.AddError(fmt.Sprintf("expected pipeline error %s, but every run succeeded", expected))
	case expected != "":
		var pe *pipeline.PassError
		if !errors.As(err, &pe) || string(pe.Code) != expected {
			result.AddError(fmt.Sprintf("expected pipeline error %s, got: %v", expected, err))
		}
	}
}
