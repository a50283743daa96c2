package generate

import (
	"context"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// HybridStrategy scores each feature and splits the document: simple
// features chain inline after the start node, complex ones become
// routed chunks behind an intent router. All-simple and all-complex
// documents delegate to the matching pure strategy.
type HybridStrategy struct{}

// Name returns the strategy name.
func (*HybridStrategy) Name() string { return StrategyHybrid }

// Generate builds the mixed graph.
func (s *HybridStrategy) Generate(ctx context.Context, doc *model.Document) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inline, routed := splitFeatures(doc)
	switch {
	case len(routed) == 0:
		r, err := (&SimpleStrategy{}).Generate(ctx, doc)
		if err != nil {
			return nil, err
		}
		r.Strategy = StrategyHybrid
		return r, nil
	case len(inline) == 0:
		r, err := (&ChunkedStrategy{}).Generate(ctx, doc)
		if err != nil {
			return nil, err
		}
		r.Strategy = StrategyHybrid
		return r, nil
	}

	fctx := flow.NewContext()
	if err := declareNamespace(fctx, doc); err != nil {
		return nil, err
	}
	if _, err := fctx.DeclareVariable(intentVariable); err != nil {
		return nil, err
	}

	factory := flow.NewFactory(fctx, doc)
	start := factory.Start(systemPrompt(doc))

	// Inline chain first: the simple features run unconditionally.
	b := newChainBuilder(fctx, factory, doc, start)
	for _, f := range inline {
		b.addFeature(f)
	}

	router := addRouter(fctx, routed)
	b.link(router, "Route")

	end := factory.End("end", "Conversation complete. Goodbye.")
	fctx.Connect(router, end, "Else", nil, priorityDefault)

	for i, f := range routed {
		cb := newChainBuilder(fctx, factory, doc, nil)
		cb.addFeature(f)
		if cb.first == nil {
			continue
		}

		fctx.Connect(router, cb.first, f.Name,
			&flow.Condition{Expression: routeExpr(f.ID)},
			priorityRoute+len(routed)-i)

		if cb.prev != nil {
			cb.link(router, "Back to router")
		}
	}

	return &Result{
		Graph:     fctx.Graph(),
		Variables: fctx.Variables(),
		Tools:     fctx.Tools(),
		Strategy:  StrategyHybrid,
		Warnings:  fctx.Warnings(),
	}, nil
}

// splitFeatures partitions features by per-feature score: simple-tier
// features inline, everything else routes. Dependency order holds
// within each partition.
func splitFeatures(doc *model.Document) (inline, routed []*model.Feature) {
	for _, f := range dependencyOrder(doc) {
		if model.FeatureTier(model.FeatureScore(f)) == model.Simple {
			inline = append(inline, f)
		} else {
			routed = append(routed, f)
		}
	}
	return inline, routed
}
