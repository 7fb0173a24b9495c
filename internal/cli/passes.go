package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/actfuse/internal/ir"
	"github.com/roach88/actfuse/internal/pipeline"
)

// PassesOptions holds flags for the passes command.
type PassesOptions struct {
	*RootOptions
	DefaultPrecision string
}

// PassInfo describes one registered pass.
type PassInfo struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
}

// NewPassesCommand creates the passes command.
func NewPassesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PassesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "passes",
		Short: "List registered passes in execution order",
		Long: `List the passes the fuse command would run, in the order the registry
resolves from their ordering constraints.

quantize is only registered when --default-precision is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasses(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DefaultPrecision, "default-precision", "", "include quantize with this precision")

	return cmd
}

func runPasses(opts *PassesOptions, cmd *cobra.Command) error {
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

	order, err := pipeline.NewDefaultRegistry(defaultPrecision).Order()
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "pass ordering failed", err)
	}

	infos := make([]PassInfo, len(order))
	for i, p := range order {
		infos[i] = PassInfo{Position: i + 1, Name: p.Name()}
	}

	if formatter.JSON() {
		return formatter.Success(infos)
	}
	for _, info := range infos {
		fmt.Fprintf(formatter.Writer, "%d. %s\n", info.Position, info.Name)
	}
	return nil
}
