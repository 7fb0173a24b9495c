// Package passes holds the optimizer passes that rewrite an ir.Graph.
//
// A pass owns the graph exclusively for the duration of Run. Passes perform
// no I/O and spawn no goroutines; ordering and repetition are decided by the
// pipeline driver.
package passes

import (
	"io"
	"log/slog"

	"github.com/roach88/actfuse/internal/ir"
)

// Pass is one named unit of graph transformation.
//
// Run reports whether the graph changed. A returned error aborts the
// pipeline; a pass that fails must leave the graph as it found it.
type Pass interface {
	Name() string
	Run(m *Model) (bool, error)
}

// Model is the context a pass runs against.
type Model struct {
	Graph  *ir.Graph
	Logger *slog.Logger

	// Rewrites accumulates the rewrites performed by passes, in order.
	Rewrites []ir.RewriteRecord
}

// NewModel wraps g with a discarding logger.
func NewModel(g *ir.Graph) *Model {
	return &Model{
		Graph:  g,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (m *Model) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}
