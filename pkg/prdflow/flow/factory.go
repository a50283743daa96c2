package flow

import (
	"fmt"
	"strings"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// Default data values seeded into type-specific node data.
const (
	defaultCollectRetries = 3
	defaultTemperature    = 0.7
	defaultMaxTokens      = 500
	defaultAPITimeout     = 30
	defaultAPIRetries     = 1
)

// Factory builds graph nodes from flow steps. It is a pure mapping: the
// same step, feature id, and document always produce the same node; id
// collision handling happens in the Context at insertion time.
type Factory struct {
	ctx *Context
	doc *model.Document
}

// NewFactory creates a factory bound to a generation context and the
// parsed document it draws variable and API records from.
func NewFactory(ctx *Context, doc *model.Document) *Factory {
	return &Factory{ctx: ctx, doc: doc}
}

// Start builds and inserts the single entry node.
func (f *Factory) Start(systemPrompt string) *Node {
	n := f.ctx.AddNode(&Node{
		ID:   "start",
		Type: NodeStart,
		Name: "Start",
		Data: map[string]any{
			"system_prompt": systemPrompt,
		},
	})
	f.ctx.SetStart(n)
	return n
}

// End builds and inserts a terminal node. The id seeds the usual
// collision handling, so multiple terminals coexist.
func (f *Factory) End(id, message string) *Node {
	return f.ctx.AddNode(&Node{
		ID:   id,
		Type: NodeEnd,
		Name: "End",
		Data: map[string]any{
			"message": message,
		},
	})
}

// FromStep maps one flow step to a node with type-specific default data
// and the deterministic id <feature-id>-<order>-<type>.
func (f *Factory) FromStep(featureID string, step model.FlowStep) *Node {
	n := &Node{
		Name: stepName(step),
		Data: map[string]any{},
	}

	switch step.Type {
	case model.StepCollect:
		n.Type = NodeCollect
		n.Data["variable"] = step.VariableName
		n.Data["prompt"] = step.Description
		n.Data["retry_count"] = defaultCollectRetries
		n.Data["fields"] = f.collectFields(step)

	case model.StepAPICall:
		n.Type = NodeAPI
		n.Data["tool_id"] = f.toolID(step)
		n.Data["timeout"] = defaultAPITimeout
		n.Data["retry_count"] = defaultAPIRetries
		if api := f.doc.APIByFunctionName(f.toolID(step)); api != nil {
			vars := make([]string, 0, len(api.Extractions))
			for _, ex := range api.Extractions {
				vars = append(vars, ex.Variable)
			}
			n.Data["output_variables"] = vars
		}

	case model.StepCondition:
		n.Type = NodeCondition
		conditions := []any{}
		if step.Condition != "" {
			conditions = append(conditions, step.Condition)
		}
		n.Data["conditions"] = conditions

	case model.StepTransfer:
		n.Type = NodeTransfer
		n.Data["destination"] = "human_agent"
		n.Data["message"] = step.Description

	case model.StepSetVariable:
		n.Type = NodeSetVariables
		assignments := map[string]any{}
		if step.VariableName != "" {
			assignments[step.VariableName] = nil
		}
		n.Data["assignments"] = assignments

	case model.StepEnd:
		n.Type = NodeEnd
		n.Data["message"] = step.Description

	case model.StepConversation:
		n.Type = NodeConversation
		n.Data["prompt"] = step.Description
		n.Data["temperature"] = defaultTemperature
		n.Data["max_tokens"] = defaultMaxTokens
		// Conversation nodes never extract data; that is what collect
		// and set_variables nodes are for.
		n.Data["extraction_fields"] = []any{}

	default:
		n.Type = NodeConversation
		n.Data["prompt"] = step.Description
		n.Data["temperature"] = defaultTemperature
		n.Data["max_tokens"] = defaultMaxTokens
		n.Data["extraction_fields"] = []any{}
	}

	n.ID = fmt.Sprintf("%s-%d-%s", Kebab(featureID), step.Order, Kebab(string(n.Type)))
	return f.ctx.AddNode(n)
}

// collectFields seeds the field list of a collect node from the step's
// variable and its declared record, when one exists.
func (f *Factory) collectFields(step model.FlowStep) []any {
	if step.VariableName == "" {
		return []any{}
	}
	field := map[string]any{
		"name":     step.VariableName,
		"type":     string(model.TypeString),
		"required": false,
	}
	if v := f.doc.VariableByName(step.VariableName); v != nil {
		field["type"] = string(v.Type)
		field["required"] = v.Required
		if len(v.Options) > 0 {
			field["options"] = v.Options
		}
	}
	return []any{field}
}

// toolID resolves the step's API reference to a function name.
func (f *Factory) toolID(step model.FlowStep) string {
	name := step.APIName
	if name == "" {
		return ""
	}
	if api := f.doc.APIByFunctionName(name); api != nil {
		return api.FunctionName
	}
	// The step may carry the display name instead.
	for i := range f.doc.APIs {
		if strings.EqualFold(f.doc.APIs[i].Name, name) {
			return f.doc.APIs[i].FunctionName
		}
	}
	return Snake(name)
}

// stepName derives a short display name from the step description.
func stepName(step model.FlowStep) string {
	name := strings.TrimSpace(step.Description)
	if name == "" {
		return string(step.Type)
	}
	if runes := []rune(name); len(runes) > 60 {
		name = strings.TrimSpace(string(runes[:60]))
	}
	return name
}
