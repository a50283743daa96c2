// Package flow defines the conversation-flow graph produced by the
// generation strategies: nodes, exits, tools, and the generation
// context that allocates ids and accumulates the shared variable/tool
// namespace.
package flow

import "sort"

// NodeType is the closed set of node kinds in the output graph.
// Factory construction and validation both switch exhaustively over it.
type NodeType string

// Node types.
const (
	NodeStart        NodeType = "start"
	NodeCollect      NodeType = "collect"
	NodeConversation NodeType = "conversation"
	NodeAPI          NodeType = "api"
	NodeCondition    NodeType = "condition"
	NodeSetVariables NodeType = "set_variables"
	NodeTransfer     NodeType = "transfer"
	NodeEnd          NodeType = "end"
)

// ValidNodeType reports whether t is a member of the node-type enum.
func ValidNodeType(t NodeType) bool {
	switch t {
	case NodeStart, NodeCollect, NodeConversation, NodeAPI,
		NodeCondition, NodeSetVariables, NodeTransfer, NodeEnd:
		return true
	}
	return false
}

// Position is a node's layout coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Layout constants for the grid placement of generated nodes.
const (
	StartX            = 100
	StartY            = 100
	HorizontalSpacing = 300
	VerticalSpacing   = 200
	NodesPerRow       = 5
)

// Node is one unit of the conversation graph.
type Node struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"type"`
	Name     string         `json:"name"`
	Data     map[string]any `json:"data"`
	Position Position       `json:"position"`
}

// Condition is a typed exit condition. A nil condition means "always".
type Condition struct {
	Expression string `json:"expression"`
}

// Exit is a directed, optionally conditional edge between two nodes.
type Exit struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	SourceNodeID string     `json:"source_node_id"`
	TargetNodeID string     `json:"target_node_id"`
	Priority     int        `json:"priority"`
	Condition    *Condition `json:"condition,omitempty"`
}

// Graph is the node/exit structure of a flow definition.
// Nodes are keyed by id; exits keep their insertion order.
type Graph struct {
	StartNodeID string           `json:"start_node_id"`
	Nodes       map[string]*Node `json:"nodes"`
	Exits       []*Exit          `json:"exits"`
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// NodesByType returns the ids of all nodes with the given type, in
// lexicographic order for determinism.
func (g *Graph) NodesByType(t NodeType) []string {
	var ids []string
	for id, n := range g.Nodes {
		if n.Type == t {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// OutgoingExits returns the exits leaving the given node, in graph order.
func (g *Graph) OutgoingExits(nodeID string) []*Exit {
	var out []*Exit
	for _, e := range g.Exits {
		if e.SourceNodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingExits returns the exits entering the given node, in graph order.
func (g *Graph) IncomingExits(nodeID string) []*Exit {
	var in []*Exit
	for _, e := range g.Exits {
		if e.TargetNodeID == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// Reachable returns the set of node ids reachable from the start node
// by following exits forward.
func (g *Graph) Reachable() map[string]bool {
	reachable := make(map[string]bool)
	if _, ok := g.Nodes[g.StartNodeID]; !ok {
		return reachable
	}

	queue := []string{g.StartNodeID}
	reachable[g.StartNodeID] = true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range g.Exits {
			if e.SourceNodeID != current {
				continue
			}
			if _, ok := g.Nodes[e.TargetNodeID]; !ok {
				continue
			}
			if !reachable[e.TargetNodeID] {
				reachable[e.TargetNodeID] = true
				queue = append(queue, e.TargetNodeID)
			}
		}
	}
	return reachable
}

// Tool is an external API definition referenced by api-type nodes
// through its function name.
type Tool struct {
	OriginalID         string         `json:"original_id"` // UUID
	Name               string         `json:"name"`
	Type               string         `json:"type"` // "http"
	FunctionDefinition map[string]any `json:"function_definition"`
	ExecutionConfig    map[string]any `json:"execution_config"`
}

// FunctionName returns the tool's callable name, the identifier api
// nodes use as tool_id.
func (t *Tool) FunctionName() string {
	if t.FunctionDefinition == nil {
		return ""
	}
	name, _ := t.FunctionDefinition["name"].(string)
	return name
}
