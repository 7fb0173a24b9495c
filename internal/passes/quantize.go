package passes

import (
	"errors"

	"github.com/roach88/actfuse/internal/ir"
)

// NameQuantize is the registered name of Quantize.
const NameQuantize = "quantize"

// Quantize assigns a uniform output precision to every dense and activation
// node that has none. Precisions set by an importer are never overwritten.
type Quantize struct {
	Default ir.Precision
}

// Name implements Pass.
func (Quantize) Name() string { return NameQuantize }

// Run implements Pass.
func (q Quantize) Run(m *Model) (bool, error) {
	if m == nil || m.Graph == nil {
		return false, errors.New("quantize: model has no graph")
	}

	changed := false
	for _, n := range m.Graph.Nodes() {
		if n.Op != ir.OpDense && n.Op != ir.OpActivation {
			continue
		}
		if !n.Meta.Quant.Empty() {
			continue
		}
		p := q.Default
		if n.Meta.Quant == nil {
			n.Meta.Quant = &ir.QuantInfo{}
		}
		n.Meta.Quant.OutputPrecision = &p

		rec := p
		m.Rewrites = append(m.Rewrites, ir.RewriteRecord{
			Kind:      ir.RewriteQuantize,
			Node:      n.Name,
			Precision: &rec,
		})
		m.logger().Debug("precision assigned", "node", n.Name, "precision", p.String())
		changed = true
	}
	return changed, nil
}
