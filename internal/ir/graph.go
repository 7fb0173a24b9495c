package ir

import (
	"errors"
	"fmt"
)

// Graph errors. Use errors.Is to match them through wrapping.
var (
	ErrDuplicateNode = errors.New("duplicate node name")
	ErrUnknownNode   = errors.New("unknown node")
	ErrCannotRelink  = errors.New("node cannot be removed without a single producer")
)

// Graph is a mutable dataflow graph of operator nodes.
//
// Nodes live in an arena indexed by NodeID. A removed node leaves a nil slot
// behind, so ids handed out earlier stay valid and iteration snapshots taken
// with NodeIDs never point at a different node.
//
// Graph is not safe for concurrent use. A pass owns the graph exclusively for
// the duration of its Run call.
type Graph struct {
	Name string

	nodes   []*Node
	byName  map[string]NodeID
	outputs []NodeID
	live    int
}

// NewGraph creates an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{
		Name:   name,
		byName: make(map[string]NodeID),
	}
}

// AddNode appends a node with no inputs. Edges are added with Connect so
// that documents may reference producers declared later.
func (g *Graph) AddNode(name string, op OpKind, meta Metadata) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("add node: name is required")
	}
	if _, exists := g.byName[name]; exists {
		return nil, fmt.Errorf("add node %q: %w", name, ErrDuplicateNode)
	}
	n := &Node{
		ID:   NodeID(len(g.nodes)),
		Name: name,
		Op:   op,
		Meta: meta,
	}
	g.nodes = append(g.nodes, n)
	g.byName[name] = n.ID
	g.live++
	return n, nil
}

// Connect appends an input slot on consumer fed by producer.
func (g *Graph) Connect(consumer, producer string) error {
	c, ok := g.Lookup(consumer)
	if !ok {
		return fmt.Errorf("connect %s <- %s: consumer: %w", consumer, producer, ErrUnknownNode)
	}
	p, ok := g.Lookup(producer)
	if !ok {
		return fmt.Errorf("connect %s <- %s: producer: %w", consumer, producer, ErrUnknownNode)
	}
	c.Inputs = append(c.Inputs, p.ID)
	return nil
}

// SetOutputs declares the graph outputs by node name, replacing any previous set.
func (g *Graph) SetOutputs(names ...string) error {
	outputs := make([]NodeID, 0, len(names))
	for _, name := range names {
		n, ok := g.Lookup(name)
		if !ok {
			return fmt.Errorf("output %q: %w", name, ErrUnknownNode)
		}
		outputs = append(outputs, n.ID)
	}
	g.outputs = outputs
	return nil
}

// Outputs returns the graph output nodes in declaration order.
func (g *Graph) Outputs() []*Node {
	out := make([]*Node, 0, len(g.outputs))
	for _, id := range g.outputs {
		if n, ok := g.Node(id); ok {
			out = append(out, n)
		}
	}
	return out
}

// OutputIDs returns the raw output references, including any that no longer
// resolve. Validation uses it to detect dangling outputs.
func (g *Graph) OutputIDs() []NodeID {
	return append([]NodeID(nil), g.outputs...)
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	return g.live
}

// Node returns the live node with the given id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, false
	}
	n := g.nodes[id]
	return n, n != nil
}

// Lookup returns the live node with the given name.
func (g *Graph) Lookup(name string) (*Node, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.Node(id)
}

// Nodes returns the live nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, g.live)
	for _, n := range g.nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// NodeIDs returns a snapshot of the live node ids in insertion order.
// The snapshot stays meaningful across removals: a removed id simply stops
// resolving through Node.
func (g *Graph) NodeIDs() []NodeID {
	out := make([]NodeID, 0, g.live)
	for _, n := range g.nodes {
		if n != nil {
			out = append(out, n.ID)
		}
	}
	return out
}

// Producer returns the producer feeding n's only input slot.
// It reports false when n has zero or several inputs, or when the producer
// no longer exists.
func (g *Graph) Producer(n *Node) (*Node, bool) {
	if n == nil || len(n.Inputs) != 1 {
		return nil, false
	}
	return g.Node(n.Inputs[0])
}

// Consumers returns the live nodes that read id in at least one input slot,
// in insertion order.
func (g *Graph) Consumers(id NodeID) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n == nil {
			continue
		}
		for _, in := range n.Inputs {
			if in == id {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// RemoveNode deletes a node and re-links every consumer slot and graph output
// that referenced it to the node's single producer.
//
// A node with consumers or output references must have exactly one input;
// otherwise ErrCannotRelink is returned and the graph is unchanged. A node
// nothing depends on may be removed regardless of its inputs.
func (g *Graph) RemoveNode(id NodeID) error {
	n, ok := g.Node(id)
	if !ok {
		return fmt.Errorf("remove node %d: %w", id, ErrUnknownNode)
	}

	consumers := g.Consumers(id)
	referencedByOutput := false
	for _, out := range g.outputs {
		if out == id {
			referencedByOutput = true
			break
		}
	}

	if len(consumers) > 0 || referencedByOutput {
		if len(n.Inputs) != 1 {
			return fmt.Errorf("remove node %q (%d inputs): %w", n.Name, len(n.Inputs), ErrCannotRelink)
		}
		producer := n.Inputs[0]
		if producer == id {
			return fmt.Errorf("remove node %q (self loop): %w", n.Name, ErrCannotRelink)
		}
		for _, c := range consumers {
			for i, in := range c.Inputs {
				if in == id {
					c.Inputs[i] = producer
				}
			}
		}
		for i, out := range g.outputs {
			if out == id {
				g.outputs[i] = producer
			}
		}
	}

	g.nodes[id] = nil
	delete(g.byName, n.Name)
	g.live--
	return nil
}

// Clone returns a deep copy of the graph. Node ids are preserved.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Name:    g.Name,
		nodes:   make([]*Node, len(g.nodes)),
		byName:  make(map[string]NodeID, len(g.byName)),
		outputs: append([]NodeID(nil), g.outputs...),
		live:    g.live,
	}
	for i, n := range g.nodes {
		if n == nil {
			continue
		}
		out.nodes[i] = n.clone()
	}
	for name, id := range g.byName {
		out.byName[name] = id
	}
	return out
}

// NameOf returns the name of a live node, or a placeholder naming the id.
func (g *Graph) NameOf(id NodeID) string {
	if n, ok := g.Node(id); ok {
		return n.Name
	}
	return fmt.Sprintf("<missing:%d>", id)
}
