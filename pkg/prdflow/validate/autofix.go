package validate

import (
	"fmt"
	"log/slog"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// Orphan handling modes.
const (
	OrphanConnect = "connect"
	OrphanRemove  = "remove"
)

// DefaultMaxIterations bounds the fix loop.
const DefaultMaxIterations = 3

// Fixer repairs fixable validation issues in place, re-validating
// after each pass. The loop stops on a clean report, on a pass that
// does not strictly reduce the issue count, or at the iteration
// ceiling, whichever comes first.
type Fixer struct {
	validator *Validator

	maxIterations int
	orphanMode    string
	logger        *slog.Logger
}

// FixerOption configures a Fixer.
type FixerOption func(*Fixer)

// MaxIterations overrides the fix-loop ceiling.
func MaxIterations(n int) FixerOption {
	return func(f *Fixer) {
		if n > 0 {
			f.maxIterations = n
		}
	}
}

// OrphanMode selects how unreachable nodes are repaired: connected
// back to the start node, or removed.
func OrphanMode(mode string) FixerOption {
	return func(f *Fixer) {
		if mode == OrphanConnect || mode == OrphanRemove {
			f.orphanMode = mode
		}
	}
}

// FixerLogger sets the fixer's logger.
func FixerLogger(l *slog.Logger) FixerOption {
	return func(f *Fixer) { f.logger = l }
}

// NewFixer creates a fixer that re-validates with the given validator.
func NewFixer(v *Validator, opts ...FixerOption) *Fixer {
	f := &Fixer{
		validator:     v,
		maxIterations: DefaultMaxIterations,
		orphanMode:    OrphanConnect,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FixResult summarizes one fix run.
type FixResult struct {
	Iterations int      `json:"iterations"`
	Applied    []string `json:"applied"`
	Report     *Report  `json:"report"`
}

// Fix validates the target and repairs what it can until the report is
// clean, a pass stops strictly reducing the issue count, or the
// iteration ceiling is reached. The final report always reflects the
// target's end state.
func (f *Fixer) Fix(t *Target) *FixResult {
	res := &FixResult{Report: f.validator.Validate(t)}

	for len(res.Report.Issues) > 0 && res.Iterations < f.maxIterations {
		before := len(res.Report.Issues)
		applied := f.applyFixes(t, res.Report)
		if len(applied) == 0 {
			break
		}
		res.Iterations++
		res.Applied = append(res.Applied, applied...)
		res.Report = f.validator.Validate(t)

		if f.logger != nil {
			f.logger.Debug("fix pass complete",
				slog.Int("iteration", res.Iterations),
				slog.Int("fixes", len(applied)),
				slog.Int("remaining", len(res.Report.Issues)),
			)
		}
		if len(res.Report.Issues) >= before {
			break
		}
	}
	return res
}

func (f *Fixer) applyFixes(t *Target, r *Report) []string {
	var applied []string
	note := func(format string, args ...any) {
		applied = append(applied, fmt.Sprintf(format, args...))
	}

	for _, issue := range r.Issues {
		switch issue.Code {
		case NoEndNode:
			end := ensureEnd(t)
			note("added end node %s", end.ID)

		case DeadEndNode:
			n, ok := t.Graph.Nodes[issue.NodeID]
			if !ok || len(t.Graph.OutgoingExits(n.ID)) > 0 {
				continue
			}
			end := ensureEnd(t)
			addExit(t.Graph, n.ID, end.ID, "Complete")
			note("connected dead-end node %s to %s", n.ID, end.ID)

		case OrphanedNode:
			if _, ok := t.Graph.Nodes[issue.NodeID]; !ok {
				continue
			}
			if f.orphanMode == OrphanRemove {
				removeNode(t.Graph, issue.NodeID)
				note("removed orphaned node %s", issue.NodeID)
				continue
			}
			// An earlier fix in this pass may already have made the
			// node reachable.
			if t.Graph.Reachable()[issue.NodeID] {
				continue
			}
			if start, ok := t.Graph.Nodes[t.Graph.StartNodeID]; ok {
				addExit(t.Graph, start.ID, issue.NodeID, "Recovered")
				note("connected orphaned node %s to start", issue.NodeID)
			}

		case NoStartNode, InvalidStartNode:
			starts := t.Graph.NodesByType(flow.NodeStart)
			if len(starts) == 0 {
				start := ensureStart(t)
				t.Graph.StartNodeID = start.ID
				note("added start node %s", start.ID)
				continue
			}
			if t.Graph.StartNodeID != starts[0] {
				t.Graph.StartNodeID = starts[0]
				note("start node id set to %s", starts[0])
			}

		case MissingNodeField:
			n, ok := t.Graph.Nodes[issue.NodeID]
			if !ok || n.Name != "" {
				continue
			}
			n.Name = n.ID
			note("named node %s after its id", n.ID)

		case CollectNoPrompt:
			n, ok := t.Graph.Nodes[issue.NodeID]
			if !ok || stringData(n, "prompt") != "" {
				continue
			}
			variable := stringData(n, "variable")
			if variable == "" {
				variable = n.Name
			}
			n.Data["prompt"] = fmt.Sprintf("Please provide %s.", variable)
			note("added prompt to collect node %s", n.ID)

		case ConditionNoConditions:
			n, ok := t.Graph.Nodes[issue.NodeID]
			if !ok {
				continue
			}
			n.Data["conditions"] = []any{"true"}
			note("added always-true condition to node %s", n.ID)

		case ConversationExtractions:
			n, ok := t.Graph.Nodes[issue.NodeID]
			if !ok {
				continue
			}
			fields, _ := n.Data["extraction_fields"].([]any)
			if len(fields) == 0 {
				continue
			}
			collect := insertCollectBefore(t.Graph, n, fields)
			n.Data["extraction_fields"] = []any{}
			note("moved extraction fields from %s into collect node %s", n.ID, collect.ID)

		case InvalidExitSource, InvalidExitTarget:
			if removeExit(t.Graph, issue.ExitID) {
				note("removed dangling exit %s", issue.ExitID)
			}

		case DuplicateExitID:
			if reidDuplicateExits(t.Graph) {
				note("renumbered duplicate exit ids")
			}

		case VariableNoName:
			if dropNamelessVariables(t) {
				note("dropped nameless variables")
			}

		case DuplicateVariable:
			if dedupeVariables(t) {
				note("deduplicated variable %s", issue.Variable)
			}

		case UndefinedVariableRef:
			if issue.Variable == "" || hasVariable(t, issue.Variable) {
				continue
			}
			t.Variables = append(t.Variables, model.Variable{
				Name:   issue.Variable,
				Type:   model.TypeString,
				Source: model.SourceCollect,
				Mode:   model.ModeDeducible,
			})
			note("declared referenced variable %s", issue.Variable)

		case InvalidVariableSource:
			for i := range t.Variables {
				v := &t.Variables[i]
				if v.Name != issue.Variable || model.ValidSource(v.Source) {
					continue
				}
				v.Source = model.SourceCollect
				note("coerced source of variable %s to collect", v.Name)
			}
		}
	}
	return applied
}

// ensureStart adds a start node and wires it into the first entry
// node: the first node (by id) with no incoming exits, or failing
// that the first node overall.
func ensureStart(t *Target) *flow.Node {
	n := &flow.Node{
		ID:   "start",
		Type: flow.NodeStart,
		Name: "Start",
		Data: map[string]any{"initial_message": "Welcome", "system_prompt": ""},
	}
	for i := 2; ; i++ {
		if _, exists := t.Graph.Nodes[n.ID]; !exists {
			break
		}
		n.ID = fmt.Sprintf("start-%d", i)
	}
	t.Graph.Nodes[n.ID] = n
	if first := entryNode(t.Graph, n.ID); first != "" {
		addExit(t.Graph, n.ID, first, "Begin")
	}
	return n
}

func entryNode(g *flow.Graph, skip string) string {
	var fallback string
	for _, id := range sortedNodeIDs(g) {
		if id == skip {
			continue
		}
		if fallback == "" {
			fallback = id
		}
		if len(g.IncomingExits(id)) == 0 {
			return id
		}
	}
	return fallback
}

// insertCollectBefore moves extraction fields off a conversation node
// into a new collect node spliced in front of it: inbound exits are
// rewired to the collect node, which then flows into the original.
func insertCollectBefore(g *flow.Graph, n *flow.Node, fields []any) *flow.Node {
	variable := extractionFieldName(fields[0])
	if variable == "" {
		variable = n.ID
	}
	collect := &flow.Node{
		ID:   fmt.Sprintf("%s-collect", n.ID),
		Type: flow.NodeCollect,
		Name: fmt.Sprintf("Collect %s", variable),
		Data: map[string]any{
			"fields":   fields,
			"variable": variable,
			"prompt":   fmt.Sprintf("Please provide %s.", variable),
		},
	}
	for i := 2; ; i++ {
		if _, exists := g.Nodes[collect.ID]; !exists {
			break
		}
		collect.ID = fmt.Sprintf("%s-collect-%d", n.ID, i)
	}
	g.Nodes[collect.ID] = collect

	for _, e := range g.IncomingExits(n.ID) {
		e.TargetNodeID = collect.ID
	}
	addExit(g, collect.ID, n.ID, "Continue")
	return collect
}

func extractionFieldName(field any) string {
	switch f := field.(type) {
	case string:
		return f
	case map[string]any:
		name, _ := f["name"].(string)
		return name
	}
	return ""
}

// ensureEnd returns an end node, creating one when the graph has none.
func ensureEnd(t *Target) *flow.Node {
	if ends := t.Graph.NodesByType(flow.NodeEnd); len(ends) > 0 {
		return t.Graph.Nodes[ends[0]]
	}
	n := &flow.Node{
		ID:   "end",
		Type: flow.NodeEnd,
		Name: "End",
		Data: map[string]any{"message": "Conversation complete. Goodbye."},
	}
	for i := 2; ; i++ {
		if _, exists := t.Graph.Nodes[n.ID]; !exists {
			break
		}
		n.ID = fmt.Sprintf("end-%d", i)
	}
	t.Graph.Nodes[n.ID] = n
	return n
}

func addExit(g *flow.Graph, sourceID, targetID, name string) {
	used := make(map[string]bool, len(g.Exits))
	for _, e := range g.Exits {
		used[e.ID] = true
	}
	id := fmt.Sprintf("exit-%s-to-%s", sourceID, targetID)
	for i := 2; used[id]; i++ {
		id = fmt.Sprintf("exit-%s-to-%s-%d", sourceID, targetID, i)
	}
	g.Exits = append(g.Exits, &flow.Exit{
		ID:           id,
		Name:         name,
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
	})
}

func removeNode(g *flow.Graph, id string) {
	delete(g.Nodes, id)
	kept := g.Exits[:0]
	for _, e := range g.Exits {
		if e.SourceNodeID != id && e.TargetNodeID != id {
			kept = append(kept, e)
		}
	}
	g.Exits = kept
}

func removeExit(g *flow.Graph, id string) bool {
	kept := g.Exits[:0]
	removed := false
	for _, e := range g.Exits {
		if e.ID == id && !removed {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	g.Exits = kept
	return removed
}

func reidDuplicateExits(g *flow.Graph) bool {
	seen := make(map[string]bool, len(g.Exits))
	changed := false
	for _, e := range g.Exits {
		if !seen[e.ID] {
			seen[e.ID] = true
			continue
		}
		for i := 2; ; i++ {
			id := fmt.Sprintf("%s-%d", e.ID, i)
			if !seen[id] {
				e.ID = id
				break
			}
		}
		seen[e.ID] = true
		changed = true
	}
	return changed
}

func dropNamelessVariables(t *Target) bool {
	kept := t.Variables[:0]
	changed := false
	for _, v := range t.Variables {
		if v.Name == "" {
			changed = true
			continue
		}
		kept = append(kept, v)
	}
	t.Variables = kept
	return changed
}

func dedupeVariables(t *Target) bool {
	seen := make(map[string]bool, len(t.Variables))
	kept := t.Variables[:0]
	changed := false
	for _, v := range t.Variables {
		if seen[v.Name] {
			changed = true
			continue
		}
		seen[v.Name] = true
		kept = append(kept, v)
	}
	t.Variables = kept
	return changed
}

func hasVariable(t *Target, name string) bool {
	for _, v := range t.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

// Codes the fixer knows how to repair, for reporting.
var fixableCodes = []Code{
	NoEndNode, DeadEndNode, OrphanedNode, NoStartNode, InvalidStartNode,
	MissingNodeField, CollectNoPrompt, ConditionNoConditions,
	ConversationExtractions, InvalidExitSource, InvalidExitTarget,
	DuplicateExitID, VariableNoName, DuplicateVariable, UndefinedVariableRef,
	InvalidVariableSource,
}

// Fixable reports whether the fixer can repair the given code.
func Fixable(code Code) bool {
	for _, c := range fixableCodes {
		if c == code {
			return true
		}
	}
	return false
}
