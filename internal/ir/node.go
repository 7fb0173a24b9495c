package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// OpKind tags the operation a node performs.
// Passes only interpret the kinds declared below; any other value is opaque.
type OpKind string

const (
	OpInput      OpKind = "input"      // graph source, hosts no computation
	OpDense      OpKind = "dense"      // linear transform (matmul + bias)
	OpActivation OpKind = "activation" // elementwise activation function
)

// NodeID is the stable arena index of a node within its graph.
type NodeID int

// Precision is an opaque fixed-point precision descriptor produced by the
// quantization stage. Passes copy it by value and never interpret it.
type Precision struct {
	Width   int64 `json:"width" yaml:"width"`     // total bits
	Integer int64 `json:"integer" yaml:"integer"` // integer bits, including sign
	Signed  bool  `json:"signed" yaml:"signed"`
}

func (p Precision) String() string {
	if p.Signed {
		return fmt.Sprintf("fixed<%d,%d>", p.Width, p.Integer)
	}
	return fmt.Sprintf("ufixed<%d,%d>", p.Width, p.Integer)
}

// ParsePrecision parses the String form of a precision, e.g. "fixed<16,6>"
// or "ufixed<8,0>".
func ParsePrecision(s string) (Precision, error) {
	var p Precision
	body := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(body, "fixed<"):
		p.Signed = true
		body = strings.TrimPrefix(body, "fixed<")
	case strings.HasPrefix(body, "ufixed<"):
		body = strings.TrimPrefix(body, "ufixed<")
	default:
		return p, fmt.Errorf("parse precision %q: want fixed<w,i> or ufixed<w,i>", s)
	}
	body, ok := strings.CutSuffix(body, ">")
	if !ok {
		return p, fmt.Errorf("parse precision %q: missing closing '>'", s)
	}
	w, i, ok := strings.Cut(body, ",")
	if !ok {
		return p, fmt.Errorf("parse precision %q: want two fields", s)
	}
	width, err := strconv.ParseInt(strings.TrimSpace(w), 10, 64)
	if err != nil {
		return p, fmt.Errorf("parse precision %q: width: %w", s, err)
	}
	integer, err := strconv.ParseInt(strings.TrimSpace(i), 10, 64)
	if err != nil {
		return p, fmt.Errorf("parse precision %q: integer bits: %w", s, err)
	}
	if width <= 0 || integer < 0 || integer > width {
		return p, fmt.Errorf("parse precision %q: need 0 <= integer <= width and width > 0", s)
	}
	p.Width, p.Integer = width, integer
	return p, nil
}

// QuantInfo is the per-node quantization record.
type QuantInfo struct {
	OutputPrecision *Precision `json:"output_precision,omitempty" yaml:"output_precision,omitempty"`
}

// Empty reports whether the record is missing or carries no precision.
// A nil receiver is empty.
func (q *QuantInfo) Empty() bool {
	return q == nil || q.OutputPrecision == nil
}

func (q *QuantInfo) clone() *QuantInfo {
	if q == nil {
		return nil
	}
	out := &QuantInfo{}
	if q.OutputPrecision != nil {
		p := *q.OutputPrecision
		out.OutputPrecision = &p
	}
	return out
}

// Metadata holds the annotations a node owns.
type Metadata struct {
	// Activation is the activation kind as written by the importer.
	// Empty means the node carries no activation annotation.
	Activation string

	// Quant is nil until the quantization stage has run on this node.
	Quant *QuantInfo

	// Attrs holds importer attributes no pass interprets.
	Attrs IRObject
}

func (m Metadata) clone() Metadata {
	return Metadata{
		Activation: m.Activation,
		Quant:      m.Quant.clone(),
		Attrs:      m.Attrs.Clone(),
	}
}

// Trait kinds.
const (
	// TraitFusedActivation marks a node that must apply an activation after
	// its core computation. Params: {"activation": <kind>}.
	TraitFusedActivation = "fused_activation"
)

// Trait is a capability marker attached to a node.
type Trait struct {
	Kind   string   `json:"kind"`
	Params IRObject `json:"params"`
}

// Node is one operator in the graph. Nodes are owned by their Graph; create
// them with Graph.AddNode.
type Node struct {
	ID     NodeID
	Name   string
	Op     OpKind
	Inputs []NodeID // one entry per input slot, each naming its producer
	Meta   Metadata
	Traits []Trait
}

// Trait returns the first trait of the given kind.
func (n *Node) Trait(kind string) (*Trait, bool) {
	for i := range n.Traits {
		if n.Traits[i].Kind == kind {
			return &n.Traits[i], true
		}
	}
	return nil, false
}

// HasTrait reports whether the node carries a trait of the given kind.
func (n *Node) HasTrait(kind string) bool {
	_, ok := n.Trait(kind)
	return ok
}

// AddTrait appends a trait.
func (n *Node) AddTrait(t Trait) {
	n.Traits = append(n.Traits, t)
}

// SetTrait replaces the parameters of an existing trait of the same kind,
// or appends t when the node has none.
func (n *Node) SetTrait(t Trait) {
	if existing, ok := n.Trait(t.Kind); ok {
		existing.Params = t.Params
		return
	}
	n.AddTrait(t)
}

func (n *Node) clone() *Node {
	out := &Node{
		ID:     n.ID,
		Name:   n.Name,
		Op:     n.Op,
		Inputs: append([]NodeID(nil), n.Inputs...),
		Meta:   n.Meta.clone(),
	}
	if n.Traits != nil {
		out.Traits = make([]Trait, len(n.Traits))
		for i, t := range n.Traits {
			out.Traits[i] = Trait{Kind: t.Kind, Params: t.Params.Clone()}
		}
	}
	return out
}
