package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/actfuse/internal/ir"
)

// Cycle is a dataflow cycle found in a graph.
type Cycle struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeCycles finds dataflow cycles in a graph.
//
// Edges run from producer to consumer. Each strongly connected component with
// more than one node, or a single node feeding itself, is reported once.
// Nodes are visited in id order so the result is deterministic.
//
// An acyclic graph returns an empty list.
func AnalyzeCycles(g *ir.Graph) []Cycle {
	graph := buildDataflowGraph(g)
	sccs := tarjanSCC(graph, g.NodeIDs())

	cycles := []Cycle{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(g, scc, graph))
		}
	}
	return cycles
}

// dataflowGraph maps producer id → consumer ids.
type dataflowGraph map[ir.NodeID][]ir.NodeID

func buildDataflowGraph(g *ir.Graph) dataflowGraph {
	graph := make(dataflowGraph, g.Len())
	for _, n := range g.Nodes() {
		if graph[n.ID] == nil {
			graph[n.ID] = []ir.NodeID{}
		}
		for _, in := range n.Inputs {
			if _, ok := g.Node(in); !ok {
				continue // dangling edges are reported separately
			}
			if !slices.Contains(graph[in], n.ID) {
				graph[in] = append(graph[in], n.ID)
			}
		}
	}
	return graph
}

func hasSelfLoop(node ir.NodeID, graph dataflowGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Roots are tried in the given order.
func tarjanSCC(graph dataflowGraph, order []ir.NodeID) [][]ir.NodeID {
	var (
		index   = 0
		stack   []ir.NodeID
		indices = make(map[ir.NodeID]int)
		lowlink = make(map[ir.NodeID]int)
		onStack = make(map[ir.NodeID]bool)
		sccs    [][]ir.NodeID
	)

	var strongConnect func(ir.NodeID)
	strongConnect = func(v ir.NodeID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []ir.NodeID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(g *ir.Graph, scc []ir.NodeID, graph dataflowGraph) Cycle {
	if len(scc) == 1 {
		name := g.NameOf(scc[0])
		return Cycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("node feeds itself: %s → %s", name, name),
		}
	}

	ids := reconstructCyclePath(scc, graph)
	path := make([]string, len(ids))
	for i, id := range ids {
		path[i] = g.NameOf(id)
	}
	return Cycle{
		Path:    path,
		Message: fmt.Sprintf("dataflow cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath walks edges inside the SCC from its lowest id until it
// returns to the start.
func reconstructCyclePath(scc []ir.NodeID, graph dataflowGraph) []ir.NodeID {
	members := make(map[ir.NodeID]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}

	start := slices.Min(scc)
	current := start
	path := []ir.NodeID{current}
	visited := make(map[ir.NodeID]bool)

	for {
		visited[current] = true

		next, found := ir.NodeID(0), false
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next, found = neighbor, true
				break
			}
		}
		if !found {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
