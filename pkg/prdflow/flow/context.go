package flow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// VariableConflictError reports two incompatible declarations of the
// same variable name accumulated across chunks.
type VariableConflictError struct {
	Name     string
	Declared model.VariableType
	Incoming model.VariableType
}

// Error implements the error interface.
func (e *VariableConflictError) Error() string {
	return fmt.Sprintf("variable %s declared as %s, redeclared as %s",
		e.Name, e.Declared, e.Incoming)
}

// Context accumulates generation state for one run: the graph under
// construction, the shared variable and tool namespaces, id allocation
// counters, and the layout cursor. It is threaded explicitly through
// strategies and chunk generators; single-writer, no locking.
type Context struct {
	graph *Graph

	variables []model.Variable
	varIndex  map[string]int

	tools     []*Tool
	toolIndex map[string]int // by function name

	usedExitIDs map[string]bool
	placed      int

	warnings []string
}

// NewContext returns an empty generation context.
func NewContext() *Context {
	return &Context{
		graph:       NewGraph(),
		varIndex:    make(map[string]int),
		toolIndex:   make(map[string]int),
		usedExitIDs: make(map[string]bool),
	}
}

// Graph returns the graph under construction.
func (c *Context) Graph() *Graph {
	return c.graph
}

// Variables returns the accumulated variable namespace in declaration order.
func (c *Context) Variables() []model.Variable {
	return c.variables
}

// Tools returns the accumulated tool namespace in declaration order.
func (c *Context) Tools() []*Tool {
	return c.tools
}

// Warnings returns non-fatal issues recorded during generation.
func (c *Context) Warnings() []string {
	return c.warnings
}

// Warnf records a non-fatal generation warning.
func (c *Context) Warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// AddNode inserts a node into the graph, disambiguating its id with a
// numeric suffix on collision. Returns the node with its final id set.
func (c *Context) AddNode(n *Node) *Node {
	n.ID = c.uniqueNodeID(n.ID)
	n.Position = c.nextPosition()
	c.graph.Nodes[n.ID] = n
	return n
}

// SetStart marks the given node as the graph entry point.
func (c *Context) SetStart(n *Node) {
	c.graph.StartNodeID = n.ID
}

// Connect adds an exit from source to target. A nil condition means the
// exit is always taken. Exit ids are derived from the endpoints with a
// numeric suffix on collision.
func (c *Context) Connect(source, target *Node, name string, cond *Condition, priority int) *Exit {
	e := &Exit{
		ID:           c.uniqueExitID(source.ID, target.ID),
		Name:         name,
		SourceNodeID: source.ID,
		TargetNodeID: target.ID,
		Priority:     priority,
		Condition:    cond,
	}
	c.graph.Exits = append(c.graph.Exits, e)
	return e
}

// DeclareVariable adds a variable to the shared namespace. The first
// declaration of a name wins; a later redeclaration with the same type
// is dropped silently, one with a different source is downgraded to a
// warning, and one with a different type is a fatal conflict.
func (c *Context) DeclareVariable(v model.Variable) (model.Variable, error) {
	if idx, ok := c.varIndex[v.Name]; ok {
		existing := c.variables[idx]
		if existing.Type != v.Type {
			return existing, &VariableConflictError{
				Name:     v.Name,
				Declared: existing.Type,
				Incoming: v.Type,
			}
		}
		if existing.Source != v.Source {
			c.Warnf("variable %s redeclared with source %s, keeping %s",
				v.Name, v.Source, existing.Source)
		}
		return existing, nil
	}

	c.varIndex[v.Name] = len(c.variables)
	c.variables = append(c.variables, v)
	return v, nil
}

// DeclareTool adds an HTTP tool for the given API definition, deduplicated
// by function name. Returns the canonical tool entry.
func (c *Context) DeclareTool(api *model.API) *Tool {
	if idx, ok := c.toolIndex[api.FunctionName]; ok {
		return c.tools[idx]
	}

	properties := make(map[string]any, len(api.Parameters))
	var required []string
	for _, p := range api.Parameters {
		properties[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	t := &Tool{
		OriginalID: uuid.NewString(),
		Name:       api.Name,
		Type:       "http",
		FunctionDefinition: map[string]any{
			"name":        api.FunctionName,
			"description": api.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
		ExecutionConfig: map[string]any{
			"method":  string(api.Method),
			"url":     api.Endpoint,
			"timeout": 30,
		},
	}

	c.toolIndex[api.FunctionName] = len(c.tools)
	c.tools = append(c.tools, t)
	return t
}

// ToolByFunctionName returns the declared tool for a function name, or nil.
func (c *Context) ToolByFunctionName(name string) *Tool {
	if idx, ok := c.toolIndex[name]; ok {
		return c.tools[idx]
	}
	return nil
}

func (c *Context) uniqueNodeID(base string) string {
	base = Kebab(base)
	if base == "" {
		base = "node"
	}
	if _, exists := c.graph.Nodes[base]; !exists {
		return base
	}
	for i := 2; ; i++ {
		id := fmt.Sprintf("%s-%d", base, i)
		if _, exists := c.graph.Nodes[id]; !exists {
			return id
		}
	}
}

func (c *Context) uniqueExitID(sourceID, targetID string) string {
	base := fmt.Sprintf("exit-%s-to-%s", sourceID, targetID)
	if !c.usedExitIDs[base] {
		c.usedExitIDs[base] = true
		return base
	}
	for i := 2; ; i++ {
		id := fmt.Sprintf("%s-%d", base, i)
		if !c.usedExitIDs[id] {
			c.usedExitIDs[id] = true
			return id
		}
	}
}

// nextPosition advances the grid layout cursor.
func (c *Context) nextPosition() Position {
	col := c.placed % NodesPerRow
	row := c.placed / NodesPerRow
	c.placed++
	return Position{
		X: StartX + col*HorizontalSpacing,
		Y: StartY + row*VerticalSpacing,
	}
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9-]+`)
var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
var dashRuns = regexp.MustCompile(`-+`)

// Kebab converts arbitrary text (snake_case, camelCase, spaced) to a
// kebab-case identifier safe for node and exit ids.
func Kebab(s string) string {
	s = camelBoundary.ReplaceAllString(s, "$1-$2")
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	s = nonIDChars.ReplaceAllString(s, "")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Snake converts arbitrary text to a snake_case identifier, used for
// API function names.
func Snake(s string) string {
	return strings.ReplaceAll(Kebab(s), "-", "_")
}
