package generate

import (
	"strings"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// Exit priorities. Guard exits outrank routing exits, which outrank the
// unconditional default.
const (
	priorityDefault = 0
	priorityRoute   = 10
	priorityGuard   = 100
)

// chainBuilder appends feature step chains onto a graph under
// construction. It tracks the chain head so terminal steps (end,
// transfer) branch off without breaking the chain, and condition steps
// fork an expression exit forward and an else exit to a dedicated end.
type chainBuilder struct {
	fctx    *flow.Context
	factory *flow.Factory
	doc     *model.Document

	prev  *flow.Node
	first *flow.Node

	// One terminal node per business rule, shared across the features
	// the rule gates.
	ruleTerminals map[string]*flow.Node
}

func newChainBuilder(fctx *flow.Context, factory *flow.Factory, doc *model.Document, from *flow.Node) *chainBuilder {
	return &chainBuilder{
		fctx:          fctx,
		factory:       factory,
		doc:           doc,
		prev:          from,
		ruleTerminals: make(map[string]*flow.Node),
	}
}

// addFeature appends the feature's steps to the chain. The feature's
// first node receives guard exits for every business rule that applies
// to it. Features without steps still get one conversation node so the
// feature stays visible in the graph.
func (b *chainBuilder) addFeature(f *model.Feature) {
	steps := f.Steps
	if len(steps) == 0 {
		desc := f.Description
		if desc == "" {
			desc = f.Name
		}
		steps = []model.FlowStep{{Order: 1, Type: model.StepConversation, Description: desc}}
	}

	entered := false
	for _, step := range steps {
		node := b.factory.FromStep(f.ID, step)
		b.link(node, "Next")
		if !entered {
			b.addGuards(node, f)
			entered = true
		}
		if step.Type.Terminal() {
			// Terminal steps branch off; the chain continues from the
			// last non-terminal node.
			continue
		}
		b.prev = node
	}
}

// link connects the chain head to the next node. A condition head forks:
// its expression exit goes forward and an else exit goes to a dedicated
// end node.
func (b *chainBuilder) link(next *flow.Node, name string) {
	if b.first == nil {
		b.first = next
	}
	if b.prev == nil {
		return
	}

	if b.prev.Type == flow.NodeCondition {
		b.fctx.Connect(b.prev, next, name, &flow.Condition{Expression: conditionExpr(b.prev)}, priorityRoute)
		elseEnd := b.factory.End(b.prev.ID+"-else-end", "Thanks for calling. Goodbye.")
		b.fctx.Connect(b.prev, elseEnd, "Else", nil, priorityDefault)
		return
	}

	b.fctx.Connect(b.prev, next, name, nil, priorityDefault)
}

// finish closes the chain with a final end node. Returns the end node,
// or nil when the chain never started.
func (b *chainBuilder) finish() *flow.Node {
	if b.prev == nil {
		return nil
	}
	end := b.factory.End("end", "Conversation complete. Goodbye.")
	b.link(end, "Complete")
	return end
}

// addGuards attaches one conditional exit per applicable business rule
// to the feature's entry node, targeting the rule's terminal node.
func (b *chainBuilder) addGuards(entry *flow.Node, f *model.Feature) {
	for i := range b.doc.Rules {
		rule := &b.doc.Rules[i]
		if !appliesTo(rule, f.ID) {
			continue
		}
		terminal := b.ruleTerminal(rule)
		b.fctx.Connect(entry, terminal, rule.ID,
			&flow.Condition{Expression: rule.Condition},
			priorityGuard+rule.Priority)
	}
}

// ruleTerminal returns the terminal node a rule's guard exit targets,
// creating it on first use. Rules whose action hands the conversation
// to a person get a transfer node; everything else ends the call with
// the action as the closing message.
func (b *chainBuilder) ruleTerminal(rule *model.BusinessRule) *flow.Node {
	if n, ok := b.ruleTerminals[rule.ID]; ok {
		return n
	}

	var n *flow.Node
	if isTransferAction(rule.Action) {
		n = b.fctx.AddNode(&flow.Node{
			ID:   rule.ID + "-transfer",
			Type: flow.NodeTransfer,
			Name: rule.Action,
			Data: map[string]any{
				"destination": "human_agent",
				"message":     rule.Action,
			},
		})
	} else {
		n = b.factory.End(rule.ID+"-end", rule.Action)
	}
	b.ruleTerminals[rule.ID] = n
	return n
}

func appliesTo(rule *model.BusinessRule, featureID string) bool {
	for _, id := range rule.AppliesTo {
		if id == featureID {
			return true
		}
	}
	return false
}

func isTransferAction(action string) bool {
	lower := strings.ToLower(action)
	for _, w := range []string{"transfer", "escalate", "human", "agent", "representative"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// conditionExpr pulls the first condition expression off a condition
// node's data. Exits leaving the node carry it so the branch is
// self-describing.
func conditionExpr(n *flow.Node) string {
	conditions, _ := n.Data["conditions"].([]any)
	if len(conditions) == 0 {
		return "true"
	}
	expr, _ := conditions[0].(string)
	if expr == "" {
		return "true"
	}
	return expr
}
