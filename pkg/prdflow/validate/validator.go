package validate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// Validator runs the validation stages over a target. It never mutates
// the target; strict mode only changes how the resulting report grades
// publishability.
type Validator struct {
	strict bool
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// Strict promotes warnings to publication blockers.
func Strict() Option {
	return func(v *Validator) { v.strict = true }
}

// WithLogger sets the validator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// New creates a validator.
func New(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every stage and returns the combined report. Stages
// run in a fixed order: graph structure, per-node rules, exits, the
// variable namespace, condition expressions, then reachability.
func (v *Validator) Validate(t *Target) *Report {
	r := &Report{Strict: v.strict}

	v.checkStructure(t, r)
	v.checkNodes(t, r)
	v.checkExits(t, r)
	v.checkVariables(t, r)
	v.checkExpressions(t, r)
	v.checkReachability(t, r)

	if v.logger != nil {
		v.logger.Debug("validation pass complete",
			slog.Int("errors", len(r.Errors())),
			slog.Int("warnings", len(r.Warnings())),
		)
	}
	return r
}

func (v *Validator) checkStructure(t *Target, r *Report) {
	g := t.Graph
	if g.StartNodeID == "" {
		r.add(Issue{Code: NoStartNode, Severity: SeverityError,
			Message: "graph has no start node id"})
	} else if n, ok := g.Nodes[g.StartNodeID]; !ok {
		r.add(Issue{Code: InvalidStartNode, Severity: SeverityError, NodeID: g.StartNodeID,
			Message: "start node id points at no node"})
	} else if n.Type != flow.NodeStart {
		r.add(Issue{Code: InvalidStartNode, Severity: SeverityError, NodeID: g.StartNodeID,
			Message: fmt.Sprintf("start node has type %s", n.Type)})
	}

	if len(g.NodesByType(flow.NodeEnd)) == 0 && len(g.NodesByType(flow.NodeTransfer)) == 0 {
		r.add(Issue{Code: NoEndNode, Severity: SeverityWarning,
			Message: "graph has no end or transfer node"})
	}
}

func (v *Validator) checkNodes(t *Target, r *Report) {
	for _, id := range sortedNodeIDs(t.Graph) {
		n := t.Graph.Nodes[id]

		if strings.TrimSpace(n.ID) == "" {
			r.add(Issue{Code: EmptyNodeID, Severity: SeverityError,
				Message: "node has an empty id"})
			continue
		}
		if !flow.ValidNodeType(n.Type) {
			r.add(Issue{Code: UnknownNodeType, Severity: SeverityError, NodeID: n.ID,
				Message: fmt.Sprintf("unknown node type %q", n.Type)})
			continue
		}
		if n.Name == "" {
			r.add(Issue{Code: MissingNodeField, Severity: SeverityError, NodeID: n.ID,
				Message: "node has no name"})
		}

		switch n.Type {
		case flow.NodeCollect:
			if stringData(n, "variable") == "" {
				r.add(Issue{Code: CollectNoVariable, Severity: SeverityError, NodeID: n.ID,
					Message: "collect node names no variable"})
			}
			if stringData(n, "prompt") == "" {
				r.add(Issue{Code: CollectNoPrompt, Severity: SeverityWarning, NodeID: n.ID,
					Message: "collect node has no prompt"})
			}

		case flow.NodeAPI:
			toolID := stringData(n, "tool_id")
			if toolID == "" {
				r.add(Issue{Code: APINoToolID, Severity: SeverityError, NodeID: n.ID,
					Message: "api node references no tool"})
			} else if !toolExists(t.Tools, toolID) {
				r.add(Issue{Code: InvalidToolReference, Severity: SeverityError, NodeID: n.ID,
					Message: fmt.Sprintf("api node references unknown tool %q", toolID)})
			}

		case flow.NodeCondition:
			if conditions, _ := n.Data["conditions"].([]any); len(conditions) == 0 {
				r.add(Issue{Code: ConditionNoConditions, Severity: SeverityWarning, NodeID: n.ID,
					Message: "condition node has no conditions"})
			}

		case flow.NodeConversation:
			if fields, _ := n.Data["extraction_fields"].([]any); len(fields) > 0 {
				r.add(Issue{Code: ConversationExtractions, Severity: SeverityError, NodeID: n.ID,
					Message: "conversation nodes must not extract data"})
			}
		}
	}
}

func (v *Validator) checkExits(t *Target, r *Report) {
	seen := make(map[string]bool, len(t.Graph.Exits))
	for _, e := range t.Graph.Exits {
		if seen[e.ID] {
			r.add(Issue{Code: DuplicateExitID, Severity: SeverityError, ExitID: e.ID,
				Message: "duplicate exit id"})
		}
		seen[e.ID] = true

		if _, ok := t.Graph.Nodes[e.SourceNodeID]; !ok {
			r.add(Issue{Code: InvalidExitSource, Severity: SeverityError, ExitID: e.ID,
				Message: fmt.Sprintf("exit source %q is not a node", e.SourceNodeID)})
		}
		if _, ok := t.Graph.Nodes[e.TargetNodeID]; !ok {
			r.add(Issue{Code: InvalidExitTarget, Severity: SeverityError, ExitID: e.ID,
				Message: fmt.Sprintf("exit target %q is not a node", e.TargetNodeID)})
		}
	}
}

func (v *Validator) checkVariables(t *Target, r *Report) {
	seen := make(map[string]bool, len(t.Variables))
	for _, variable := range t.Variables {
		if variable.Name == "" {
			r.add(Issue{Code: VariableNoName, Severity: SeverityError,
				Message: "variable has no name"})
			continue
		}
		if seen[variable.Name] {
			r.add(Issue{Code: DuplicateVariable, Severity: SeverityError, Variable: variable.Name,
				Message: "variable declared more than once"})
		}
		seen[variable.Name] = true

		if !model.ValidSource(variable.Source) {
			r.add(Issue{Code: InvalidVariableSource, Severity: SeverityError, Variable: variable.Name,
				Message: fmt.Sprintf("unknown variable source %q", variable.Source)})
		}
	}
}

// checkExpressions parses every exit condition and condition-node
// expression. Unparseable expressions and references to undeclared
// variables are warnings: prose conditions are allowed through, they
// just cannot be machine-evaluated.
func (v *Validator) checkExpressions(t *Target, r *Report) {
	declared := make(map[string]bool, len(t.Variables))
	for _, variable := range t.Variables {
		declared[variable.Name] = true
	}

	check := func(expression, nodeID, exitID string) {
		idents, err := expressionIdents(expression)
		if err != nil {
			r.add(Issue{Code: InvalidConditionExpr, Severity: SeverityWarning,
				NodeID: nodeID, ExitID: exitID,
				Message: fmt.Sprintf("condition %q is not a valid expression", expression)})
			return
		}
		for _, ident := range idents {
			if !declared[ident] {
				r.add(Issue{Code: UndefinedVariableRef, Severity: SeverityWarning,
					NodeID: nodeID, ExitID: exitID, Variable: ident,
					Message: fmt.Sprintf("condition references undeclared variable %q", ident)})
			}
		}
	}

	for _, e := range t.Graph.Exits {
		if e.Condition != nil && e.Condition.Expression != "" {
			check(e.Condition.Expression, "", e.ID)
		}
	}
	for _, id := range sortedNodeIDs(t.Graph) {
		n := t.Graph.Nodes[id]
		if n.Type != flow.NodeCondition {
			continue
		}
		conditions, _ := n.Data["conditions"].([]any)
		for _, c := range conditions {
			if expression, _ := c.(string); expression != "" {
				check(expression, n.ID, "")
			}
		}
	}
}

func (v *Validator) checkReachability(t *Target, r *Report) {
	reachable := t.Graph.Reachable()
	for _, id := range sortedNodeIDs(t.Graph) {
		n := t.Graph.Nodes[id]

		if !reachable[id] && id != t.Graph.StartNodeID {
			r.add(Issue{Code: OrphanedNode, Severity: SeverityWarning, NodeID: id,
				Message: "node is unreachable from the start node"})
		}

		terminal := n.Type == flow.NodeEnd || n.Type == flow.NodeTransfer
		if !terminal && len(t.Graph.OutgoingExits(id)) == 0 {
			r.add(Issue{Code: DeadEndNode, Severity: SeverityWarning, NodeID: id,
				Message: "non-terminal node has no outgoing exits"})
		}
	}
}

func (r *Report) add(i Issue) {
	r.Issues = append(r.Issues, i)
}

func stringData(n *flow.Node, key string) string {
	s, _ := n.Data[key].(string)
	return strings.TrimSpace(s)
}

func toolExists(tools []*flow.Tool, functionName string) bool {
	for _, t := range tools {
		if t.FunctionName() == functionName {
			return true
		}
	}
	return false
}

func sortedNodeIDs(g *flow.Graph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// exprBuiltins are identifiers the expression language defines itself;
// they are not variable references.
var exprBuiltins = map[string]bool{
	"len": true, "all": true, "any": true, "one": true, "none": true,
	"map": true, "filter": true, "count": true, "abs": true,
	"int": true, "float": true, "string": true, "nil": true,
}

// expressionIdents compiles the expression for syntax and returns the
// variable identifiers it references.
func expressionIdents(src string) ([]string, error) {
	if _, err := expr.Compile(src, expr.AllowUndefinedVariables()); err != nil {
		return nil, err
	}
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}

	c := &identCollector{}
	ast.Walk(&tree.Node, c)
	return c.idents, nil
}

type identCollector struct {
	idents []string
}

func (c *identCollector) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok || exprBuiltins[id.Value] {
		return
	}
	c.idents = append(c.idents, id.Value)
}
