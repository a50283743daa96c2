package generate

import (
	"context"
	"fmt"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// intentVariable is the routing variable the chunked router branches
// on. It is declared alongside the document's own variables so router
// expressions always reference a known name.
var intentVariable = model.Variable{
	Name:        "intent",
	Type:        model.TypeString,
	Source:      model.SourceCollect,
	Description: "Feature the caller wants, as a feature id",
	Mode:        model.ModeDeducible,
}

// ChunkedStrategy builds one sub-graph per feature and routes between
// them through a central intent router. Features are emitted with their
// dependencies first; every chunk loops back to the router when it
// finishes without reaching a terminal.
type ChunkedStrategy struct{}

// Name returns the strategy name.
func (*ChunkedStrategy) Name() string { return StrategyChunked }

// Generate builds the routed graph.
func (s *ChunkedStrategy) Generate(ctx context.Context, doc *model.Document) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
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

	features := dependencyOrder(doc)
	router := addRouter(fctx, features)
	fctx.Connect(start, router, "Route", nil, priorityDefault)

	end := factory.End("end", "Conversation complete. Goodbye.")
	fctx.Connect(router, end, "Else", nil, priorityDefault)

	for i, f := range features {
		b := newChainBuilder(fctx, factory, doc, nil)
		b.addFeature(f)
		if b.first == nil {
			continue
		}

		fctx.Connect(router, b.first, f.Name,
			&flow.Condition{Expression: routeExpr(f.ID)},
			priorityRoute+len(features)-i)

		// Chunks that end on a non-terminal hand control back to the
		// router.
		if b.prev != nil {
			b.link(router, "Back to router")
		}
	}

	return &Result{
		Graph:     fctx.Graph(),
		Variables: fctx.Variables(),
		Tools:     fctx.Tools(),
		Strategy:  StrategyChunked,
		Warnings:  fctx.Warnings(),
	}, nil
}

// addRouter inserts the central condition node carrying one routing
// expression per feature.
func addRouter(fctx *flow.Context, features []*model.Feature) *flow.Node {
	conditions := make([]any, 0, len(features))
	for _, f := range features {
		conditions = append(conditions, routeExpr(f.ID))
	}
	return fctx.AddNode(&flow.Node{
		ID:   "router",
		Type: flow.NodeCondition,
		Name: "Route by intent",
		Data: map[string]any{
			"conditions": conditions,
		},
	})
}

func routeExpr(featureID string) string {
	return fmt.Sprintf("intent == %q", featureID)
}
