package passes

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/actfuse/internal/ir"
)

// NameFuseActivation is the registered name of FuseActivation.
const NameFuseActivation = "fuse_activation"

// FuseActivation folds relu and linear activations into the node that
// produces their input.
//
// For every matching activation the producer gains a fused_activation trait,
// takes over the activation's output precision, and replaces the activation
// as the source of its consumers. The activation node is removed.
//
// The quantize pass must run first: a matching activation without an output
// precision aborts the whole invocation with a *PreconditionError and the
// graph is not modified.
type FuseActivation struct{}

// Name implements Pass.
func (FuseActivation) Name() string { return NameFuseActivation }

// Run implements Pass.
func (p FuseActivation) Run(m *Model) (bool, error) {
	if m == nil || m.Graph == nil {
		return false, errors.New("fuse_activation: model has no graph")
	}

	// Rehearse on a copy so a precondition failure part way through leaves
	// the caller's graph untouched.
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := fuseActivations(m.Graph.Clone(), discard); err != nil {
		return false, err
	}

	rewrites, err := fuseActivations(m.Graph, m.logger())
	if err != nil {
		return false, err
	}
	m.Rewrites = append(m.Rewrites, rewrites...)
	return len(rewrites) > 0, nil
}

// fuseActivations visits nodes from the highest id to the lowest. Ids are
// stable across removal, so the snapshot taken up front stays valid; nodes
// removed earlier in the scan are skipped and every visit re-evaluates the
// pattern against the current graph.
func fuseActivations(g *ir.Graph, logger *slog.Logger) ([]ir.RewriteRecord, error) {
	var rewrites []ir.RewriteRecord

	ids := g.NodeIDs()
	for i := len(ids) - 1; i >= 0; i-- {
		n, ok := g.Node(ids[i])
		if !ok {
			continue
		}

		match := MatchFusion(g, n)
		if !match.OK {
			if n.Op == ir.OpActivation {
				logger.Debug("activation not fused", "node", n.Name, "reason", match.Reason)
			}
			continue
		}

		if n.Meta.Quant.Empty() {
			return nil, &PreconditionError{
				Pass:    NameFuseActivation,
				Node:    n.Name,
				Message: "quantization information missing; run quantize before fuse_activation",
			}
		}

		producer := match.Producer
		kind := composeActivation(producer, match.Activation)
		producer.SetTrait(ir.Trait{
			Kind:   ir.TraitFusedActivation,
			Params: ir.IRObject{"activation": ir.IRString(kind)},
		})

		precision := *n.Meta.Quant.OutputPrecision
		if producer.Meta.Quant == nil {
			producer.Meta.Quant = &ir.QuantInfo{}
		}
		producer.Meta.Quant.OutputPrecision = &precision

		if err := g.RemoveNode(n.ID); err != nil {
			return nil, fmt.Errorf("fuse %s into %s: %w", n.Name, producer.Name, err)
		}

		logger.Info("activation fused",
			"node", n.Name,
			"into", producer.Name,
			"activation", kind,
			"precision", precision.String(),
		)

		p := precision
		rewrites = append(rewrites, ir.RewriteRecord{
			Kind:       ir.RewriteFuseActivation,
			Node:       n.Name,
			Into:       producer.Name,
			Activation: match.Activation,
			Precision:  &p,
		})
	}

	return rewrites, nil
}

// composeActivation returns the activation a producer applies after
// absorbing kind on top of an earlier fusion. Linear is the identity, so
// linear over anything keeps the earlier kind and relu over anything is relu.
// The rewrite record keeps the absorbed kind, so after linear lands on a relu
// fusion the journal says linear while the trait still says relu.
func composeActivation(producer *ir.Node, kind string) string {
	existing, ok := producer.Trait(ir.TraitFusedActivation)
	if !ok || kind != ActivationLinear {
		return kind
	}
	prev, _ := existing.Params["activation"].(ir.IRString)
	if prev == "" {
		return kind
	}
	return NormalizeActivation(string(prev))
}
