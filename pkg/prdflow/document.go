package prdflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/generate"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/validate"
)

// ExportVersion is the document format version stamped into metadata.
const ExportVersion = "1.0"

// Validation status values stamped into document metadata.
const (
	StatusValid             = "valid"
	StatusValidWithWarnings = "valid_with_warnings"
	StatusInvalid           = "invalid"
)

// Document is the composed output: everything a flow runtime needs to
// host the agent, in one JSON-shaped structure.
type Document struct {
	Metadata          DocumentMetadata   `json:"metadata"`
	Agent             Agent              `json:"agent"`
	FlowDefinition    FlowDefinition     `json:"flow_definition"`
	Tools             []*flow.Tool       `json:"tools"`
	FillerSentences   []string           `json:"filler_sentences"`
	NikudReplacements []NikudReplacement `json:"nikud_replacements"`
}

// DocumentMetadata is the export envelope: version, timestamp, and the
// validation outcome the document shipped with.
type DocumentMetadata struct {
	ExportVersion    string   `json:"export_version"`
	ExportedAt       string   `json:"exported_at"` // RFC 3339
	ValidationStatus string   `json:"validation_status"`
	Errors           []string `json:"errors"`
	Warnings         []string `json:"warnings"`
}

// Agent describes the conversational agent itself.
type Agent struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Channel       string `json:"channel"`
	AgentMode     string `json:"agent_mode"`
	AgentLanguage string `json:"agent_language"`
	IsActive      bool   `json:"is_active"`
}

// FlowDefinition is the flow payload: settings, variables, tool
// wiring, and the graph.
type FlowDefinition struct {
	ID             string             `json:"id"` // UUID
	Name           string             `json:"name"`
	Version        int                `json:"version"`
	Channel        string             `json:"channel"`
	GlobalSettings GlobalSettings     `json:"global_settings"`
	Variables      []DocumentVariable `json:"variables"`
	Tools          ToolSettings       `json:"tools"`
	Flow           Flow               `json:"flow"`
}

// GlobalSettings holds flow-wide LLM configuration.
type GlobalSettings struct {
	SystemPrompt string `json:"system_prompt"`
	LLMProvider  string `json:"llm_provider"`
	LLMModel     string `json:"llm_model"`
}

// ToolSettings enables built-in runtime tools and lists globally
// available custom tools.
type ToolSettings struct {
	BuiltInTools map[string]bool `json:"built_in_tools"`
	GlobalTools  []string        `json:"global_tools"`
}

// DocumentVariable is one flow variable in output form.
type DocumentVariable struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Persist     bool     `json:"persist"`
	Source      string   `json:"source"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// Flow is the graph section: node map plus the ordered exit list.
type Flow struct {
	StartNodeID string                   `json:"start_node_id"`
	Nodes       map[string]*DocumentNode `json:"nodes"`
	Exits       []*flow.Exit             `json:"exits"`
}

// DocumentNode is a graph node in output form. Each node carries its
// outgoing exits inline in addition to the flow-level exit list.
type DocumentNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Data     map[string]any `json:"data"`
	Exits    []*flow.Exit   `json:"exits"`
	Position flow.Position  `json:"position"`
}

// NikudReplacement is one locale-specific text substitution applied
// before speech synthesis.
type NikudReplacement struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Compose assembles the output document from the parsed input, the
// generation result, and the final validation report.
func Compose(doc *model.Document, res *generate.Result, report *validate.Report) *Document {
	out := &Document{
		Metadata: DocumentMetadata{
			ExportVersion:    ExportVersion,
			ExportedAt:       time.Now().UTC().Format(time.RFC3339),
			ValidationStatus: validationStatus(report),
			Errors:           issueStrings(report.Errors()),
			Warnings:         issueStrings(report.Warnings()),
		},
		Agent: Agent{
			Name:          doc.Metadata.Name,
			Description:   doc.Metadata.Description,
			Channel:       string(doc.Metadata.Channel),
			AgentMode:     "autonomous",
			AgentLanguage: doc.Metadata.Language,
			IsActive:      true,
		},
		FlowDefinition: FlowDefinition{
			ID:      uuid.NewString(),
			Name:    flowName(doc.Metadata.Name),
			Version: 1,
			Channel: string(doc.Metadata.Channel),
			GlobalSettings: GlobalSettings{
				SystemPrompt: systemPromptOf(res.Graph),
				LLMProvider:  "anthropic",
				LLMModel:     "claude-3-5-sonnet",
			},
			Variables: composeVariables(res.Variables),
			Tools: ToolSettings{
				BuiltInTools: map[string]bool{
					"transfer_to_human":    true,
					"end_call":             true,
					"schedule_appointment": false,
				},
				GlobalTools: toolNames(res.Tools),
			},
			Flow: composeFlow(res.Graph),
		},
		Tools:             res.Tools,
		FillerSentences:   []string{},
		NikudReplacements: []NikudReplacement{},
	}
	if out.Tools == nil {
		out.Tools = []*flow.Tool{}
	}
	return out
}

// Marshal serializes the document, optionally indented.
func (d *Document) Marshal(pretty bool, indent int) ([]byte, error) {
	if pretty {
		if indent <= 0 {
			indent = 2
		}
		return json.MarshalIndent(d, "", strings.Repeat(" ", indent))
	}
	return json.Marshal(d)
}

// ParseDocument parses output JSON back into a Document, for
// re-validation of existing exports.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if d.FlowDefinition.Flow.Nodes == nil {
		return nil, fmt.Errorf("%w: missing flow_definition.flow.nodes", ErrInvalidDocument)
	}
	return &d, nil
}

// Target converts the document back into the mutable unit the
// validator and fixer operate on.
func (d *Document) Target() *validate.Target {
	g := flow.NewGraph()
	g.StartNodeID = d.FlowDefinition.Flow.StartNodeID
	for id, n := range d.FlowDefinition.Flow.Nodes {
		g.Nodes[id] = &flow.Node{
			ID:       n.ID,
			Type:     flow.NodeType(n.Type),
			Name:     n.Name,
			Data:     n.Data,
			Position: n.Position,
		}
	}
	g.Exits = d.FlowDefinition.Flow.Exits

	vars := make([]model.Variable, 0, len(d.FlowDefinition.Variables))
	for _, v := range d.FlowDefinition.Variables {
		vars = append(vars, model.Variable{
			Name:        v.Name,
			Type:        model.VariableTypeFromString(v.Type),
			Description: v.Description,
			Source:      model.VariableSourceFromString(v.Source),
			Required:    v.Required,
			Default:     v.Default,
			Options:     v.Options,
		})
	}

	return &validate.Target{
		Graph:     g,
		Variables: vars,
		Tools:     d.Tools,
	}
}

func composeFlow(g *flow.Graph) Flow {
	f := Flow{
		StartNodeID: g.StartNodeID,
		Nodes:       make(map[string]*DocumentNode, len(g.Nodes)),
		Exits:       g.Exits,
	}
	if f.Exits == nil {
		f.Exits = []*flow.Exit{}
	}
	for id, n := range g.Nodes {
		f.Nodes[id] = &DocumentNode{
			ID:       n.ID,
			Type:     string(n.Type),
			Name:     n.Name,
			Data:     n.Data,
			Exits:    outgoingOrEmpty(g, id),
			Position: n.Position,
		}
	}
	return f
}

func composeVariables(vars []model.Variable) []DocumentVariable {
	out := make([]DocumentVariable, 0, len(vars))
	for _, v := range vars {
		out = append(out, DocumentVariable{
			Name:        v.Name,
			Type:        string(v.Type),
			Persist:     true,
			Source:      string(v.Source),
			Description: v.Description,
			Required:    v.Required,
			Default:     v.Default,
			Options:     v.Options,
		})
	}
	return out
}

func validationStatus(report *validate.Report) string {
	switch {
	case len(report.Errors()) > 0:
		return StatusInvalid
	case len(report.Warnings()) > 0:
		return StatusValidWithWarnings
	default:
		return StatusValid
	}
}

func issueStrings(issues []validate.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.String())
	}
	return out
}

func toolNames(tools []*flow.Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if name := t.FunctionName(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func flowName(agentName string) string {
	if agentName == "" {
		return "main-flow"
	}
	return flow.Kebab(agentName) + "-flow"
}

func systemPromptOf(g *flow.Graph) string {
	start, ok := g.Nodes[g.StartNodeID]
	if !ok || start.Data == nil {
		return ""
	}
	prompt, _ := start.Data["system_prompt"].(string)
	return prompt
}

func outgoingOrEmpty(g *flow.Graph, id string) []*flow.Exit {
	out := g.OutgoingExits(id)
	if out == nil {
		return []*flow.Exit{}
	}
	return out
}
