package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/actfuse/internal/ir"
	"github.com/roach88/actfuse/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Node     string
	Limit    int
}

// RunDetail is one run with its pass invocations.
type RunDetail struct {
	Run    ir.RunRecord    `json:"run"`
	Passes []ir.PassRecord `json:"passes"`
}

// NodeHistoryEntry is one journaled rewrite that touched a node.
type NodeHistoryEntry struct {
	RunID   string           `json:"run_id"`
	RunSeq  int64            `json:"run_seq"`
	PassSeq int64            `json:"pass_seq"`
	Pass    string           `json:"pass"`
	Rewrite ir.RewriteRecord `json:"rewrite"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Inspect journaled runs",
		Long: `Read the run journal written by fuse --db.

Without arguments, lists runs in the order they were journaled. With a run
id, shows that run's pass invocations and rewrites. With --node, lists every
rewrite that removed the node or fused into it, across all runs.

Examples:
  actfuse history --db runs.db
  actfuse history --db runs.db --limit 5
  actfuse history --db runs.db 0192d4c0-...
  actfuse history --db runs.db --node dense1`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Node, "node", "", "show rewrites touching this node")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "list only the most recent N runs")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if runID != "" && opts.Node != "" {
		_ = formatter.Error(ErrCodeGeneric, "a run id and --node cannot be combined", nil)
		return NewExitError(ExitCommandError, "a run id and --node cannot be combined")
	}

	// store.Open creates missing databases; history only reads.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.Node != "":
		return showNodeHistory(ctx, st, opts.Node, formatter)
	case runID != "":
		return showRun(ctx, st, runID, formatter)
	default:
		return listRuns(ctx, st, opts.Limit, formatter)
	}
}

func listRuns(ctx context.Context, st *store.Store, limit int, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}

	if formatter.JSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(formatter.Writer, "%4d  %s  %-8s %s\n", run.Seq, run.ID, run.Status, run.GraphName)
		if run.Error != "" {
			fmt.Fprintf(formatter.Writer, "      error: %s\n", run.Error)
		}
	}
	return nil
}

func showRun(ctx context.Context, st *store.Store, runID string, formatter *OutputFormatter) error {
	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read run", err)
	}
	passes, err := st.ReadPasses(ctx, runID)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read passes", err)
	}

	if formatter.JSON() {
		return formatter.Success(RunDetail{Run: run, Passes: passes})
	}
	printRunText(formatter.Writer, run, passes)
	return nil
}

func printRunText(w io.Writer, run ir.RunRecord, passes []ir.PassRecord) {
	fmt.Fprintf(w, "Run %s (seq %d)\n", run.ID, run.Seq)
	fmt.Fprintf(w, "  graph:  %s\n", run.GraphName)
	fmt.Fprintf(w, "  status: %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "  error:  %s\n", run.Error)
	}
	fmt.Fprintf(w, "  hash:   %s -> %s\n", run.GraphHashBefore, run.GraphHashAfter)
	fmt.Fprintln(w)
	for _, p := range passes {
		mark := " "
		if p.Changed {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %3d  iteration %d  %s\n", mark, p.Seq, p.Iteration, p.PassName)
		for _, rw := range p.Rewrites {
			fmt.Fprintf(w, "        %s\n", formatRewrite(rw))
		}
	}
}

func showNodeHistory(ctx context.Context, st *store.Store, node string, formatter *OutputFormatter) error {
	rewrites, err := st.RewritesForNode(ctx, node)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read node history", err)
	}

	entries := make([]NodeHistoryEntry, len(rewrites))
	for i, nr := range rewrites {
		entries[i] = NodeHistoryEntry{
			RunID:   nr.RunID,
			RunSeq:  nr.RunSeq,
			PassSeq: nr.PassSeq,
			Pass:    nr.PassName,
			Rewrite: nr.Rewrite,
		}
	}

	if formatter.JSON() {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintf(formatter.Writer, "No rewrites touch node %s.\n", node)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "run %d (%s) seq %d: %s\n", e.RunSeq, e.RunID, e.PassSeq, formatRewrite(e.Rewrite))
	}
	return nil
}
