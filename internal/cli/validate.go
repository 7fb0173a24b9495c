package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/actfuse/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Graph  string                     `json:"graph,omitempty"`
	Nodes  int                        `json:"nodes,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model>",
		Short: "Check a model graph for well-formedness",
		Long: `Load a model graph and report every well-formedness problem.

Checks dangling inputs, activation arity and kind, input nodes with inputs,
graph outputs, and dataflow cycles. No passes are run.

Exit codes:
  0 - Model is well-formed
  1 - Model has validation errors
  2 - Model could not be loaded`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	model, err := LoadModel(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && len(loadErr.Details) > 0 {
			return outputValidationErrors(formatter, "", loadErr.Details)
		}
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded %s: graph %s with %d node(s)", path, model.Graph.Name, model.Graph.Len())

	if errs := compiler.Validate(model.Graph); len(errs) > 0 {
		return outputValidationErrors(formatter, model.Graph.Name, errs)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{
			Valid: true,
			Graph: model.Graph.Name,
			Nodes: model.Graph.Len(),
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ Graph %s is well-formed (%d nodes)\n", model.Graph.Name, model.Graph.Len())
	return nil
}

// outputLoadError reports a model that could not be loaded. Load failures
// are command errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Message
		if line := lineOf(loadErr.Pos); line > 0 {
			message = fmt.Sprintf("%s (line %d)", message, line)
		}
	}
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, graph string, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		err := formatter.Respond(CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Graph:  graph,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		})
		if err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}
