package generate

import (
	"context"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// SimpleStrategy chains every feature's steps into one linear flow in
// document order: start, the features back to back, one final end.
type SimpleStrategy struct{}

// Name returns the strategy name.
func (*SimpleStrategy) Name() string { return StrategySimple }

// Generate builds the linear graph.
func (s *SimpleStrategy) Generate(ctx context.Context, doc *model.Document) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fctx := flow.NewContext()
	if err := declareNamespace(fctx, doc); err != nil {
		return nil, err
	}

	factory := flow.NewFactory(fctx, doc)
	start := factory.Start(systemPrompt(doc))

	b := newChainBuilder(fctx, factory, doc, start)
	for i := range doc.Features {
		b.addFeature(&doc.Features[i])
	}
	b.finish()

	return &Result{
		Graph:     fctx.Graph(),
		Variables: fctx.Variables(),
		Tools:     fctx.Tools(),
		Strategy:  StrategySimple,
		Warnings:  fctx.Warnings(),
	}, nil
}
