package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/actfuse/internal/ir"
	"github.com/roach88/actfuse/internal/passes"
)

// DefaultMaxIterations bounds fixpoint runs.
const DefaultMaxIterations = 16

// Journal persists run and pass records. Implemented by store.Store.
type Journal interface {
	// BeginRun records a new run and returns its logical sequence number.
	BeginRun(ctx context.Context, run ir.RunRecord) (int64, error)

	// RecordPass records one pass invocation, with its rewrites, and returns
	// the invocation's row id.
	RecordPass(ctx context.Context, runID string, rec ir.PassRecord) (int64, error)

	// FinishRun records the final status of a run.
	FinishRun(ctx context.Context, runID, status, hashAfter, errMsg string) error
}

// Driver runs the passes of a Registry over a graph.
//
// CRITICAL: A Driver may be reused for many runs but Run must not be called
// concurrently on the same graph. Each run gets its own clock and quota.
type Driver struct {
	registry      *Registry
	journal       Journal
	logger        *slog.Logger
	runIDs        RunIDGenerator
	fixpoint      bool
	maxIterations int
}

// Option configures a Driver.
type Option func(*Driver)

// WithMaxIterations sets the fixpoint iteration quota.
//
// Default: 16 (DefaultMaxIterations). Values below 1 are ignored.
func WithMaxIterations(n int) Option {
	return func(d *Driver) {
		if n >= 1 {
			d.maxIterations = n
		}
	}
}

// WithJournal records every run and pass invocation in j.
func WithJournal(j Journal) Option {
	return func(d *Driver) {
		d.journal = j
	}
}

// WithLogger sets the logger handed to passes. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithFixpoint repeats the pass sequence until no pass reports a change.
func WithFixpoint(enabled bool) Option {
	return func(d *Driver) {
		d.fixpoint = enabled
	}
}

// WithRunIDGenerator sets the run id source. Defaults to UUIDv7Generator.
func WithRunIDGenerator(gen RunIDGenerator) Option {
	return func(d *Driver) {
		if gen != nil {
			d.runIDs = gen
		}
	}
}

// New creates a Driver over reg.
func New(reg *Registry, opts ...Option) *Driver {
	d := &Driver{
		registry:      reg,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		runIDs:        UUIDv7Generator{},
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Report summarizes one run.
type Report struct {
	RunID      string
	Seq        int64 // journal sequence; 0 without a journal
	GraphName  string
	HashBefore string
	HashAfter  string
	Changed    bool
	Iterations int
	Passes     []ir.PassRecord
	Rewrites   []ir.RewriteRecord
}

// Run executes the pass sequence over g.
//
// On failure Run returns the partial report together with the error; passes
// that completed before the failure keep their effect on g. Failures are
// *PassError values, except registry ordering errors (*OrderError) which are
// returned before anything runs.
func (d *Driver) Run(ctx context.Context, g *ir.Graph) (*Report, error) {
	if g == nil {
		return nil, errors.New("run: nil graph")
	}
	if d.registry == nil {
		return nil, errors.New("run: no registry")
	}

	order, err := d.registry.Order()
	if err != nil {
		return nil, err
	}

	hashBefore, err := ir.GraphHash(g)
	if err != nil {
		return nil, fmt.Errorf("hash graph %s: %w", g.Name, err)
	}

	report := &Report{
		RunID:      d.runIDs.Generate(),
		GraphName:  g.Name,
		HashBefore: hashBefore,
		HashAfter:  hashBefore,
	}
	logger := d.logger.With("run", report.RunID)

	if d.journal != nil {
		seq, err := d.journal.BeginRun(ctx, ir.RunRecord{
			ID:              report.RunID,
			GraphName:       g.Name,
			Status:          ir.RunStatusRunning,
			GraphHashBefore: hashBefore,
			ToolVersion:     ir.ToolVersion,
			IRVersion:       ir.IRVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("journal run %s: %w", report.RunID, err)
		}
		report.Seq = seq
	}

	logger.Info("run started", "graph", g.Name, "passes", passNames(order), "fixpoint", d.fixpoint)

	clock := NewClock()
	runErr := d.iterate(ctx, g, order, report, clock, logger)

	if h, err := ir.GraphHash(g); err == nil {
		report.HashAfter = h
	} else if runErr == nil {
		runErr = fmt.Errorf("hash graph %s: %w", g.Name, err)
	}

	if d.journal != nil {
		status, msg := ir.RunStatusOK, ""
		if runErr != nil {
			status, msg = ir.RunStatusFailed, runErr.Error()
		}
		// The run outcome is recorded even when ctx has been cancelled.
		if err := d.journal.FinishRun(context.WithoutCancel(ctx), report.RunID, status, report.HashAfter, msg); err != nil && runErr == nil {
			runErr = fmt.Errorf("journal run %s: %w", report.RunID, err)
		}
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		return report, runErr
	}
	logger.Info("run finished",
		"changed", report.Changed,
		"iterations", report.Iterations,
		"invocations", clock.Current(),
		"rewrites", len(report.Rewrites),
	)
	return report, nil
}

func (d *Driver) iterate(ctx context.Context, g *ir.Graph, order []passes.Pass, report *Report, clock *Clock, logger *slog.Logger) error {
	quota := NewIterationQuota(d.maxIterations)
	model := &passes.Model{Graph: g, Logger: logger}

	for {
		if err := quota.Check(report.RunID); err != nil {
			return &PassError{
				Code:      ErrCodeIterationsExceeded,
				RunID:     report.RunID,
				Iteration: quota.Current(),
				Err:       err,
			}
		}
		iteration := quota.Current()
		report.Iterations = iteration

		changed := false
		for _, p := range order {
			if err := ctx.Err(); err != nil {
				return &PassError{
					Code:      ErrCodeCancelled,
					RunID:     report.RunID,
					Iteration: iteration,
					Err:       err,
				}
			}

			rec, err := d.runPass(ctx, model, p, clock.Next(), iteration, report.RunID)
			if err != nil {
				return err
			}
			report.Passes = append(report.Passes, rec)
			report.Rewrites = append(report.Rewrites, rec.Rewrites...)
			if rec.Changed {
				changed = true
				report.Changed = true
			}
		}

		if !d.fixpoint || !changed {
			return nil
		}
	}
}

func (d *Driver) runPass(ctx context.Context, model *passes.Model, p passes.Pass, seq int64, iteration int, runID string) (ir.PassRecord, error) {
	fail := func(code PassErrorCode, err error) (ir.PassRecord, error) {
		return ir.PassRecord{}, &PassError{
			Code:      code,
			Pass:      p.Name(),
			RunID:     runID,
			Iteration: iteration,
			Err:       err,
		}
	}

	before, err := ir.GraphHash(model.Graph)
	if err != nil {
		return fail(ErrCodePassFailed, err)
	}

	start := len(model.Rewrites)
	changed, err := p.Run(model)
	if err != nil {
		if passes.IsPreconditionError(err) {
			return fail(ErrCodePreconditionViolated, err)
		}
		return fail(ErrCodePassFailed, err)
	}

	after, err := ir.GraphHash(model.Graph)
	if err != nil {
		return fail(ErrCodePassFailed, err)
	}

	rec := ir.PassRecord{
		Seq:        seq,
		Iteration:  iteration,
		PassName:   p.Name(),
		Changed:    changed,
		HashBefore: before,
		HashAfter:  after,
	}
	if n := len(model.Rewrites) - start; n > 0 {
		rec.Rewrites = make([]ir.RewriteRecord, n)
		copy(rec.Rewrites, model.Rewrites[start:])
	}

	if d.journal != nil {
		// A finished pass is recorded even if ctx ends meanwhile; the loop
		// reports the cancellation before the next pass starts.
		id, err := d.journal.RecordPass(context.WithoutCancel(ctx), runID, rec)
		if err != nil {
			return fail(ErrCodePassFailed, fmt.Errorf("journal: %w", err))
		}
		rec.ID = id
	}

	model.Logger.Debug("pass finished",
		"pass", rec.PassName,
		"seq", rec.Seq,
		"iteration", iteration,
		"changed", changed,
		"rewrites", len(rec.Rewrites),
	)
	return rec, nil
}

func passNames(order []passes.Pass) []string {
	names := make([]string, len(order))
	for i, p := range order {
		names[i] = p.Name()
	}
	return names
}
