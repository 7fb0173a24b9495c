package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/actfuse/internal/compiler"
	"github.com/roach88/actfuse/internal/ir"
	"github.com/roach88/actfuse/internal/pipeline"
	"github.com/roach88/actfuse/internal/store"
)

// FuseOptions holds flags for the fuse command.
type FuseOptions struct {
	*RootOptions
	Output           string
	Database         string
	Fixpoint         bool
	MaxIterations    int
	DryRun           bool
	DefaultPrecision string

	// RunIDs overrides the run id generator (for testing).
	// If nil, the driver uses UUIDv7 ids.
	RunIDs pipeline.RunIDGenerator
}

// FuseResult is the JSON payload of a fuse run.
type FuseResult struct {
	RunID       string             `json:"run_id"`
	Graph       string             `json:"graph"`
	Changed     bool               `json:"changed"`
	Iterations  int                `json:"iterations"`
	Passes      []PassSummary      `json:"passes"`
	Rewrites    []ir.RewriteRecord `json:"rewrites"`
	NodesBefore int                `json:"nodes_before"`
	NodesAfter  int                `json:"nodes_after"`
	HashBefore  string             `json:"hash_before"`
	HashAfter   string             `json:"hash_after"`
	Output      string             `json:"output,omitempty"`
	DryRun      bool               `json:"dry_run,omitempty"`
}

// PassSummary is one pass invocation in a FuseResult.
type PassSummary struct {
	Seq       int64  `json:"seq"`
	Iteration int    `json:"iteration"`
	Pass      string `json:"pass"`
	Changed   bool   `json:"changed"`
	Rewrites  int    `json:"rewrites"`
}

// NewFuseCommand creates the fuse command.
func NewFuseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FuseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fuse <model>",
		Short: "Fuse activations into their producers",
		Long: `Run the optimizer pipeline over a model graph.

Relu and linear activations that follow a dense layer (or a linear activation
that follows a graph input) are folded into the producer as a
fused_activation trait and removed from the graph. Activations must carry an
output precision; pass --default-precision to run the quantize pass first
and fill in missing ones.

The model may be a .yaml, .yml, .json or .cue file, or a directory holding a
CUE package. The fused graph is written with --output; its format follows
the file extension.

Examples:
  actfuse fuse model.yaml -o fused.yaml
  actfuse fuse ./model --default-precision 'fixed<16,6>' --fixpoint
  actfuse fuse model.json --db runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFuse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the fused graph to this file (.yaml, .yml or .json)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal the run to this SQLite database")
	cmd.Flags().BoolVar(&opts.Fixpoint, "fixpoint", false, "repeat the pass sequence until nothing changes")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", pipeline.DefaultMaxIterations, "iteration limit for --fixpoint")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "run the passes but write nothing")
	cmd.Flags().StringVar(&opts.DefaultPrecision, "default-precision", "", "run quantize with this precision, e.g. fixed<16,6>")

	return cmd
}

func runFuse(opts *FuseOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var defaultPrecision *ir.Precision
	if opts.DefaultPrecision != "" {
		p, err := ir.ParsePrecision(opts.DefaultPrecision)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid --default-precision", err)
		}
		defaultPrecision = &p
	}
	if opts.Output != "" && !opts.DryRun {
		if _, err := outputEncoder(opts.Output); err != nil {
			_ = formatter.Error(ErrCodeUnsupported, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid --output", err)
		}
	}

	model, err := LoadModel(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && len(loadErr.Details) > 0 {
			return outputValidationErrors(formatter, "", loadErr.Details)
		}
		return outputLoadError(formatter, err)
	}
	g := model.Graph
	if errs := compiler.Validate(g); len(errs) > 0 {
		return outputValidationErrors(formatter, g.Name, errs)
	}
	formatter.VerboseLog("Loaded %s: graph %s with %d node(s)", path, g.Name, g.Len())

	driverOpts := []pipeline.Option{
		pipeline.WithLogger(opts.logger()),
		pipeline.WithFixpoint(opts.Fixpoint),
		pipeline.WithMaxIterations(opts.MaxIterations),
	}
	if opts.RunIDs != nil {
		driverOpts = append(driverOpts, pipeline.WithRunIDGenerator(opts.RunIDs))
	}

	if opts.Database != "" && !opts.DryRun {
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				opts.logger().Error("error closing database", "error", closeErr)
			}
		}()
		driverOpts = append(driverOpts, pipeline.WithJournal(st))
		formatter.VerboseLog("Journaling to %s", opts.Database)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	nodesBefore := g.Len()
	driver := pipeline.New(pipeline.NewDefaultRegistry(defaultPrecision), driverOpts...)
	report, runErr := driver.Run(ctx, g)
	if report == nil {
		// Nothing ran: ordering or journal setup failed.
		_ = formatter.Error(ErrCodeGeneric, runErr.Error(), nil)
		return WrapExitError(ExitCommandError, "pipeline did not start", runErr)
	}

	result := newFuseResult(report, nodesBefore, g.Len())
	result.DryRun = opts.DryRun

	if runErr != nil {
		return outputFuseFailure(formatter, result, runErr)
	}

	if opts.Output != "" && !opts.DryRun {
		if err := writeModel(opts.Output, compiler.FromGraph(g)); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		result.Output = opts.Output
	}

	if formatter.JSON() {
		return formatter.Respond(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}
	printFuseText(formatter.Writer, result)
	return nil
}

func newFuseResult(report *pipeline.Report, nodesBefore, nodesAfter int) FuseResult {
	result := FuseResult{
		RunID:       report.RunID,
		Graph:       report.GraphName,
		Changed:     report.Changed,
		Iterations:  report.Iterations,
		Passes:      make([]PassSummary, 0, len(report.Passes)),
		Rewrites:    report.Rewrites,
		NodesBefore: nodesBefore,
		NodesAfter:  nodesAfter,
		HashBefore:  report.HashBefore,
		HashAfter:   report.HashAfter,
	}
	if result.Rewrites == nil {
		result.Rewrites = []ir.RewriteRecord{}
	}
	for _, p := range report.Passes {
		result.Passes = append(result.Passes, PassSummary{
			Seq:       p.Seq,
			Iteration: p.Iteration,
			Pass:      p.PassName,
			Changed:   p.Changed,
			Rewrites:  len(p.Rewrites),
		})
	}
	return result
}

// outputFuseFailure reports a run that started but failed. The graph is not
// written. Pass failures exit with code 1.
func outputFuseFailure(formatter *OutputFormatter, result FuseResult, runErr error) error {
	code := ErrCodeGeneric
	var passErr *pipeline.PassError
	if errors.As(runErr, &passErr) {
		code = string(passErr.Code)
	}

	if formatter.JSON() {
		err := formatter.Respond(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: code, Message: runErr.Error()},
			RunID:  result.RunID,
		})
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ Run %s failed\n", result.RunID)
		fmt.Fprintf(formatter.Writer, "  %s\n", runErr)
	}
	return WrapExitError(ExitFailure, "fuse failed", runErr)
}

func printFuseText(w io.Writer, r FuseResult) {
	verb := "Fused"
	if !r.Changed {
		verb = "Nothing to fuse in"
	}
	fmt.Fprintf(w, "✓ %s graph %s (run %s)\n", verb, r.Graph, r.RunID)
	fmt.Fprintf(w, "  iterations: %d\n", r.Iterations)
	fmt.Fprintf(w, "  nodes:      %d -> %d\n", r.NodesBefore, r.NodesAfter)
	fmt.Fprintf(w, "  rewrites:   %d\n", len(r.Rewrites))
	for _, rw := range r.Rewrites {
		fmt.Fprintf(w, "    %s\n", formatRewrite(rw))
	}
	if r.Output != "" {
		fmt.Fprintf(w, "  output:     %s\n", r.Output)
	}
	if r.DryRun {
		fmt.Fprintln(w, "  (dry run, nothing written)")
	}
}

// formatRewrite renders one rewrite on a single line.
func formatRewrite(rw ir.RewriteRecord) string {
	var b strings.Builder
	b.WriteString(rw.Kind)
	b.WriteString(" ")
	b.WriteString(rw.Node)
	if rw.Into != "" {
		b.WriteString(" -> ")
		b.WriteString(rw.Into)
	}
	var extra []string
	if rw.Activation != "" {
		extra = append(extra, rw.Activation)
	}
	if rw.Precision != nil {
		extra = append(extra, rw.Precision.String())
	}
	if len(extra) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(extra, ", "))
	}
	return b.String()
}

type encodeFunc func(io.Writer, *compiler.GraphDoc) error

// outputEncoder picks the document encoder for an output path.
func outputEncoder(path string) (encodeFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case compiler.ExtYAML, compiler.ExtYML:
		return compiler.EncodeYAML, nil
	case compiler.ExtJSON:
		return compiler.EncodeJSON, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want .yaml, .yml or .json)", filepath.Ext(path))
	}
}

func writeModel(path string, doc *compiler.GraphDoc) (err error) {
	encode, err := outputEncoder(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	return encode(f, doc)
}
