package compiler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/actfuse/internal/ir"
)

// GraphDoc is the on-disk form of a model graph. Node order in the document is
// the node order of the built graph.
type GraphDoc struct {
	Name    string    `json:"name" yaml:"name"`
	Nodes   []NodeDoc `json:"nodes" yaml:"nodes"`
	Outputs []string  `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// NodeDoc is one node of a GraphDoc.
type NodeDoc struct {
	Name       string         `json:"name" yaml:"name"`
	Op         string         `json:"op" yaml:"op"`
	Inputs     []string       `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Activation string         `json:"activation,omitempty" yaml:"activation,omitempty"`
	Quant      *ir.QuantInfo  `json:"quant,omitempty" yaml:"quant,omitempty"`
	Traits     []TraitDoc     `json:"traits,omitempty" yaml:"traits,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty" yaml:"attrs,omitempty"`

	// Line is the 1-based source line of the node, when known.
	Line int `json:"-" yaml:"-"`
}

// TraitDoc is the document form of ir.Trait.
type TraitDoc struct {
	Kind   string         `json:"kind" yaml:"kind"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// DecodeYAML decodes a model document from YAML. Unknown fields are rejected.
func DecodeYAML(data []byte) (*GraphDoc, error) {
	var doc GraphDoc
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: empty document")
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	// Second pass over the node tree for source lines.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err == nil {
		attachNodeLines(&root, &doc)
	}
	return &doc, nil
}

func attachNodeLines(root *yaml.Node, doc *GraphDoc) {
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "nodes" {
			continue
		}
		seq := root.Content[i+1]
		for j, item := range seq.Content {
			if j < len(doc.Nodes) {
				doc.Nodes[j].Line = item.Line
			}
		}
	}
}

// DecodeJSON decodes a model document from JSON. Unknown fields are rejected
// and numbers are kept exact.
func DecodeJSON(data []byte) (*GraphDoc, error) {
	var doc GraphDoc
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return &doc, nil
}

// EncodeYAML writes the document as YAML with two-space indentation.
func EncodeYAML(w io.Writer, doc *GraphDoc) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// EncodeJSON writes the document as indented JSON.
func EncodeJSON(w io.Writer, doc *GraphDoc) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// DocumentError collects every problem that prevents a document from being
// built into a graph.
type DocumentError struct {
	Errors []ValidationError
}

func (e *DocumentError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("invalid model document: %s", strings.Join(msgs, "; "))
}

// IsDocumentError reports whether err is or wraps a DocumentError.
func IsDocumentError(err error) bool {
	var de *DocumentError
	return errors.As(err, &de)
}

// Build turns a document into a graph. All nodes are added before any edge,
// so inputs may name nodes declared later in the document.
//
// Structural problems (duplicate names, references to missing nodes, invalid
// attribute values) are returned together as a *DocumentError. Semantic
// problems such as a wrong activation arity are left for Validate, so that
// passes can be exercised on graphs they are expected to skip.
func Build(doc *GraphDoc) (*ir.Graph, error) {
	if errs := checkDocument(doc); len(errs) > 0 {
		return nil, &DocumentError{Errors: errs}
	}

	g := ir.NewGraph(doc.Name)
	for _, nd := range doc.Nodes {
		meta, err := nodeMetadata(nd)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nd.Name, err)
		}
		n, err := g.AddNode(nd.Name, ir.OpKind(nd.Op), meta)
		if err != nil {
			return nil, err
		}
		for _, td := range nd.Traits {
			params, err := ir.ObjectFromMap(td.Params)
			if err != nil {
				return nil, fmt.Errorf("node %q trait %q: %w", nd.Name, td.Kind, err)
			}
			n.AddTrait(ir.Trait{Kind: td.Kind, Params: params})
		}
	}
	for _, nd := range doc.Nodes {
		for _, in := range nd.Inputs {
			if err := g.Connect(nd.Name, in); err != nil {
				return nil, err
			}
		}
	}
	if err := g.SetOutputs(doc.Outputs...); err != nil {
		return nil, err
	}
	return g, nil
}

func nodeMetadata(nd NodeDoc) (ir.Metadata, error) {
	attrs, err := ir.ObjectFromMap(nd.Attrs)
	if err != nil {
		return ir.Metadata{}, fmt.Errorf("attrs: %w", err)
	}
	meta := ir.Metadata{
		Activation: nd.Activation,
		Attrs:      attrs,
	}
	if nd.Quant != nil {
		q := &ir.QuantInfo{}
		if nd.Quant.OutputPrecision != nil {
			p := *nd.Quant.OutputPrecision
			q.OutputPrecision = &p
		}
		meta.Quant = q
	}
	return meta, nil
}

// checkDocument returns every structural error in the document.
func checkDocument(doc *GraphDoc) []ValidationError {
	var errs []ValidationError
	if doc == nil {
		return []ValidationError{{
			Field:   "document",
			Message: "document is empty",
			Code:    ErrMissingField,
		}}
	}

	declared := make(map[string]bool, len(doc.Nodes))
	for i, nd := range doc.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		if nd.Name == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "node name is required",
				Code:    ErrMissingField,
				Line:    nd.Line,
			})
			continue
		}
		if declared[nd.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate node name: %q", nd.Name),
				Code:    ErrDuplicateNodeName,
				Line:    nd.Line,
			})
		}
		declared[nd.Name] = true
		if nd.Op == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".op",
				Message: fmt.Sprintf("node %q has no op", nd.Name),
				Code:    ErrMissingField,
				Line:    nd.Line,
			})
		}
		if _, err := ir.ObjectFromMap(nd.Attrs); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".attrs",
				Message: err.Error(),
				Code:    ErrInvalidAttribute,
				Line:    nd.Line,
			})
		}
		for j, td := range nd.Traits {
			if td.Kind == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.traits[%d].kind", field, j),
					Message: "trait kind is required",
					Code:    ErrMissingField,
					Line:    nd.Line,
				})
			}
			if _, err := ir.ObjectFromMap(td.Params); err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.traits[%d].params", field, j),
					Message: err.Error(),
					Code:    ErrInvalidAttribute,
					Line:    nd.Line,
				})
			}
		}
	}

	for i, nd := range doc.Nodes {
		for j, in := range nd.Inputs {
			if !declared[in] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("nodes[%d].inputs[%d]", i, j),
					Message: fmt.Sprintf("node %q consumes undeclared node %q", nd.Name, in),
					Code:    ErrDanglingInput,
					Line:    nd.Line,
				})
			}
		}
	}

	// Outputs may alias: a fused graph can list the same producer twice.
	for i, out := range doc.Outputs {
		if !declared[out] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("outputs[%d]", i),
				Message: fmt.Sprintf("output names undeclared node %q", out),
				Code:    ErrBadOutput,
			})
		}
	}
	return errs
}

// FromGraph converts a graph back into its document form. Removed nodes are
// skipped, so a fused graph round-trips without its absorbed activations.
func FromGraph(g *ir.Graph) *GraphDoc {
	doc := &GraphDoc{Name: g.Name}
	for _, n := range g.Nodes() {
		nd := NodeDoc{
			Name:       n.Name,
			Op:         string(n.Op),
			Activation: n.Meta.Activation,
			Attrs:      n.Meta.Attrs.ToMap(),
		}
		for _, id := range n.Inputs {
			nd.Inputs = append(nd.Inputs, g.NameOf(id))
		}
		if n.Meta.Quant != nil {
			q := &ir.QuantInfo{}
			if n.Meta.Quant.OutputPrecision != nil {
				p := *n.Meta.Quant.OutputPrecision
				q.OutputPrecision = &p
			}
			nd.Quant = q
		}
		for _, t := range n.Traits {
			nd.Traits = append(nd.Traits, TraitDoc{Kind: t.Kind, Params: t.Params.ToMap()})
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, out := range g.Outputs() {
		doc.Outputs = append(doc.Outputs, out.Name)
	}
	return doc
}
