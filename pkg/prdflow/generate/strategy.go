// Package generate turns a parsed document into a conversation flow
// graph. Three strategies cover the complexity range: simple builds one
// linear chain, chunked routes per-feature chunks through an intent
// router, and hybrid mixes both based on per-feature scores.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// Strategy names.
const (
	StrategySimple  = "simple"
	StrategyChunked = "chunked"
	StrategyHybrid  = "hybrid"
)

// Result is the output of one generation run: the graph plus the
// variable and tool namespaces accumulated while building it.
type Result struct {
	Graph     *flow.Graph
	Variables []model.Variable
	Tools     []*flow.Tool
	Strategy  string
	Warnings  []string
}

// Strategy generates a flow graph from a parsed document.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, doc *model.Document) (*Result, error)
}

// ByName returns the strategy with the given name.
func ByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategySimple:
		return &SimpleStrategy{}, nil
	case StrategyChunked:
		return &ChunkedStrategy{}, nil
	case StrategyHybrid:
		return &HybridStrategy{}, nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// Select picks the strategy for a document. A non-empty override names
// the strategy explicitly; otherwise the document's complexity tier
// decides: simple documents chain linearly, medium documents route
// through chunks once the graph gets big enough, and everything above
// that uses the hybrid mix.
func Select(doc *model.Document, override string) (Strategy, error) {
	if override != "" {
		return ByName(override)
	}

	switch doc.ComplexityTier() {
	case model.Simple:
		return &SimpleStrategy{}, nil
	case model.Medium:
		if doc.EstimatedNodeCount() > 10 {
			return &ChunkedStrategy{}, nil
		}
		return &SimpleStrategy{}, nil
	default:
		return &HybridStrategy{}, nil
	}
}

// systemPrompt synthesizes the start node's system prompt from the
// document metadata.
func systemPrompt(doc *model.Document) string {
	var b strings.Builder

	name := doc.Metadata.Name
	if name == "" {
		name = "a conversational assistant"
	}
	fmt.Fprintf(&b, "You are %s.", name)
	if doc.Metadata.Description != "" {
		fmt.Fprintf(&b, " %s", doc.Metadata.Description)
	}
	if doc.Metadata.Language == "he-IL" {
		b.WriteString(" Respond in Hebrew.")
	}
	if doc.Metadata.Channel == model.ChannelVoice {
		b.WriteString(" Keep responses short and natural for a voice call.")
	}
	if len(doc.Features) > 0 {
		names := make([]string, 0, len(doc.Features))
		for i := range doc.Features {
			if n := doc.Features[i].Name; n != "" {
				names = append(names, n)
			}
		}
		if len(names) > 0 {
			fmt.Fprintf(&b, " You can help with: %s.", strings.Join(names, ", "))
		}
	}
	return b.String()
}

// declareNamespace loads the document's variables and API tools into
// the generation context. A variable type conflict is fatal.
func declareNamespace(fctx *flow.Context, doc *model.Document) error {
	for _, v := range doc.Variables {
		if _, err := fctx.DeclareVariable(v); err != nil {
			return fmt.Errorf("declaring variable %s: %w", v.Name, err)
		}
	}
	for i := range doc.APIs {
		fctx.DeclareTool(&doc.APIs[i])
	}
	return nil
}

// dependencyOrder returns the document's features with dependencies
// ahead of their dependents. Ties keep document order; dependency
// cycles fall back to document order for the remaining members.
func dependencyOrder(doc *model.Document) []*model.Feature {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(doc.Features))
	order := make([]*model.Feature, 0, len(doc.Features))

	var visit func(f *model.Feature)
	visit = func(f *model.Feature) {
		if state[f.ID] != 0 {
			return
		}
		state[f.ID] = visiting
		for _, dep := range f.Dependencies {
			if d := doc.FeatureByID(dep); d != nil && state[d.ID] != visiting {
				visit(d)
			}
		}
		state[f.ID] = done
		order = append(order, f)
	}

	for i := range doc.Features {
		visit(&doc.Features[i])
	}
	return order
}
