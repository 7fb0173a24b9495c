package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/actfuse/internal/ir"
)

// GraphPath is the CUE path under which a model graph is declared.
const GraphPath = "graph"

// CompileCUE compiles CUE source and extracts the graph declared at GraphPath.
func CompileCUE(src []byte, filename string) (*GraphDoc, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	gv := v.LookupPath(cue.ParsePath(GraphPath))
	if !gv.Exists() {
		return nil, &CompileError{
			Field:   GraphPath,
			Message: "no graph declared",
			Pos:     v.Pos(),
		}
	}
	return CompileGraph(gv)
}

// CompileGraph parses a CUE value into a GraphDoc.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the graph struct itself, e.g.:
//
//	graph: {
//		name: "mlp"
//		nodes: [
//			{name: "x", op: "input"},
//			{name: "fc1", op: "dense", inputs: ["x"]},
//		]
//		outputs: ["fc1"]
//	}
func CompileGraph(v cue.Value) (*GraphDoc, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	doc := &GraphDoc{}

	name, err := optionalString(v, "name")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &CompileError{
			Field:   "name",
			Message: "graph name is required",
			Pos:     v.Pos(),
		}
	}
	doc.Name = name

	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	if !nodesVal.Exists() {
		return nil, &CompileError{
			Field:   "nodes",
			Message: "nodes are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := nodesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		nd, err := parseNode(iter.Value())
		if err != nil {
			return nil, err
		}
		doc.Nodes = append(doc.Nodes, nd)
	}

	doc.Outputs, err = optionalStrings(v, "outputs")
	if err != nil {
		return nil, err
	}

	return doc, nil
}

func parseNode(v cue.Value) (NodeDoc, error) {
	nd := NodeDoc{Line: v.Pos().Line()}

	var err error
	if nd.Name, err = optionalString(v, "name"); err != nil {
		return nd, err
	}
	if nd.Op, err = optionalString(v, "op"); err != nil {
		return nd, err
	}
	if nd.Activation, err = optionalString(v, "activation"); err != nil {
		return nd, err
	}
	if nd.Inputs, err = optionalStrings(v, "inputs"); err != nil {
		return nd, err
	}

	// Parse quant (optional)
	quantVal := v.LookupPath(cue.ParsePath("quant"))
	if quantVal.Exists() {
		var q ir.QuantInfo
		if err := quantVal.Decode(&q); err != nil {
			return nd, formatCUEError(err)
		}
		nd.Quant = &q
	}

	// Parse attrs (optional)
	attrsVal := v.LookupPath(cue.ParsePath("attrs"))
	if attrsVal.Exists() {
		attrs, err := cueToAny(attrsVal)
		if err != nil {
			return nd, err
		}
		m, ok := attrs.(map[string]any)
		if !ok {
			return nd, &CompileError{
				Field:   "attrs",
				Message: "attrs must be a struct",
				Pos:     attrsVal.Pos(),
			}
		}
		nd.Attrs = m
	}

	// Parse traits (optional)
	traitsVal := v.LookupPath(cue.ParsePath("traits"))
	if traitsVal.Exists() {
		titer, err := traitsVal.List()
		if err != nil {
			return nd, formatCUEError(err)
		}
		for titer.Next() {
			tv := titer.Value()
			kind, err := optionalString(tv, "kind")
			if err != nil {
				return nd, err
			}
			td := TraitDoc{Kind: kind}
			paramsVal := tv.LookupPath(cue.ParsePath("params"))
			if paramsVal.Exists() {
				params, err := cueToAny(paramsVal)
				if err != nil {
					return nd, err
				}
				m, ok := params.(map[string]any)
				if !ok {
					return nd, &CompileError{
						Field:   "params",
						Message: "trait params must be a struct",
						Pos:     paramsVal.Pos(),
					}
				}
				td.Params = m
			}
			nd.Traits = append(nd.Traits, td)
		}
	}

	return nd, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// cueToAny converts a concrete CUE value into plain Go values.
// Floats are forbidden - use int instead.
func cueToAny(v cue.Value) (any, error) {
	if !v.IsConcrete() {
		return nil, &CompileError{
			Field:   "value",
			Message: "value must be concrete",
			Pos:     v.Pos(),
		}
	}
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			elem, err := cueToAny(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			elem, err := cueToAny(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Selector().Unquoted()] = elem
		}
		return out, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "type",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
