package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainGraph = "actfuse/graph/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Snapshot converts the graph into an IRObject suitable for canonical
// serialization. Edges and outputs are written by producer name, so two
// graphs with the same structure but different arena layouts snapshot
// identically.
//
// Layout:
//
//	{"name": ..., "nodes": [{"name", "op", "inputs", "activation"?, "quant"?, "traits"?, "attrs"?}], "outputs": [...]}
func Snapshot(g *Graph) IRObject {
	nodes := make(IRArray, 0, g.Len())
	for _, n := range g.Nodes() {
		nodes = append(nodes, snapshotNode(g, n))
	}

	outputs := make(IRArray, 0, len(g.outputs))
	for _, id := range g.outputs {
		outputs = append(outputs, IRString(g.NameOf(id)))
	}

	return IRObject{
		"name":    IRString(g.Name),
		"nodes":   nodes,
		"outputs": outputs,
	}
}

func snapshotNode(g *Graph, n *Node) IRObject {
	inputs := make(IRArray, len(n.Inputs))
	for i, id := range n.Inputs {
		inputs[i] = IRString(g.NameOf(id))
	}

	obj := IRObject{
		"name":   IRString(n.Name),
		"op":     IRString(n.Op),
		"inputs": inputs,
	}
	if n.Meta.Activation != "" {
		obj["activation"] = IRString(n.Meta.Activation)
	}
	if n.Meta.Quant != nil {
		quant := IRObject{}
		if p := n.Meta.Quant.OutputPrecision; p != nil {
			quant["output_precision"] = PrecisionValue(*p)
		}
		obj["quant"] = quant
	}
	if len(n.Traits) > 0 {
		traits := make(IRArray, len(n.Traits))
		for i, t := range n.Traits {
			params := t.Params
			if params == nil {
				params = IRObject{}
			}
			traits[i] = IRObject{
				"kind":   IRString(t.Kind),
				"params": params,
			}
		}
		obj["traits"] = traits
	}
	if len(n.Meta.Attrs) > 0 {
		obj["attrs"] = n.Meta.Attrs
	}
	return obj
}

// PrecisionValue converts a precision descriptor to its IR form.
func PrecisionValue(p Precision) IRObject {
	return IRObject{
		"width":   IRInt(p.Width),
		"integer": IRInt(p.Integer),
		"signed":  IRBool(p.Signed),
	}
}

// MarshalGraph returns the canonical JSON form of the graph.
func MarshalGraph(g *Graph) ([]byte, error) {
	data, err := MarshalCanonical(Snapshot(g))
	if err != nil {
		return nil, fmt.Errorf("MarshalGraph: %w", err)
	}
	return data, nil
}

// GraphHash computes the content-addressed fingerprint of a graph.
// Two graphs hash equal iff their canonical snapshots are byte-identical.
func GraphHash(g *Graph) (string, error) {
	data, err := MarshalGraph(g)
	if err != nil {
		return "", fmt.Errorf("GraphHash: %w", err)
	}
	return hashWithDomain(DomainGraph, data), nil
}

// MustGraphHash is like GraphHash but panics on error.
// Use only in tests or when attributes are known to be valid.
func MustGraphHash(g *Graph) string {
	h, err := GraphHash(g)
	if err != nil {
		panic(err)
	}
	return h
}
