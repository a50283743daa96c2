// Package validate checks generated flow graphs against the output
// schema's structural rules and repairs the fixable violations. The
// validator is read-only; all mutation happens in the fixer.
package validate

import (
	"fmt"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// Code identifies one class of validation issue.
type Code string

// Error codes: the graph cannot be published while any of these remain.
const (
	NoStartNode             Code = "NO_START_NODE"
	InvalidStartNode        Code = "INVALID_START_NODE"
	EmptyNodeID             Code = "EMPTY_NODE_ID"
	UnknownNodeType         Code = "UNKNOWN_NODE_TYPE"
	MissingNodeField        Code = "MISSING_NODE_FIELD"
	CollectNoVariable       Code = "COLLECT_NO_VARIABLE"
	APINoToolID             Code = "API_NO_TOOL_ID"
	ConversationExtractions Code = "CONVERSATION_HAS_EXTRACTIONS"
	InvalidExitSource       Code = "INVALID_EXIT_SOURCE"
	InvalidExitTarget       Code = "INVALID_EXIT_TARGET"
	DuplicateExitID         Code = "DUPLICATE_EXIT_ID"
	InvalidToolReference    Code = "INVALID_TOOL_REFERENCE"
	VariableNoName          Code = "VARIABLE_NO_NAME"
	InvalidVariableSource   Code = "INVALID_VARIABLE_SOURCE"
	DuplicateVariable       Code = "DUPLICATE_VARIABLE"
)

// Warning codes: advisory by default, promoted to errors in strict mode.
const (
	NoEndNode             Code = "NO_END_NODE"
	CollectNoPrompt       Code = "COLLECT_NO_PROMPT"
	ConditionNoConditions Code = "CONDITION_NO_CONDITIONS"
	InvalidConditionExpr  Code = "INVALID_CONDITION_EXPR"
	UndefinedVariableRef  Code = "UNDEFINED_VARIABLE_REF"
	OrphanedNode          Code = "ORPHANED_NODE"
	DeadEndNode           Code = "DEAD_END_NODE"
)

// Severity grades an issue.
type Severity string

// Severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, located by node, exit, or variable.
type Issue struct {
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	NodeID   string   `json:"node_id,omitempty"`
	ExitID   string   `json:"exit_id,omitempty"`
	Variable string   `json:"variable,omitempty"`
}

func (i Issue) String() string {
	where := i.NodeID
	if where == "" {
		where = i.ExitID
	}
	if where == "" {
		where = i.Variable
	}
	if where == "" {
		return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Code, i.Message)
	}
	return fmt.Sprintf("[%s] %s at %s: %s", i.Severity, i.Code, where, i.Message)
}

// Report collects the findings of one validation pass.
type Report struct {
	Issues []Issue `json:"issues"`
	Strict bool    `json:"strict"`
}

// Errors returns the error-severity issues.
func (r *Report) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity issues.
func (r *Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

// Valid reports whether the graph can be published: no errors, and in
// strict mode no warnings either.
func (r *Report) Valid() bool {
	if r.Strict {
		return len(r.Issues) == 0
	}
	return len(r.Errors()) == 0
}

// ByCode returns the issues with the given code.
func (r *Report) ByCode(code Code) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Code == code {
			out = append(out, i)
		}
	}
	return out
}

func (r *Report) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// Target bundles the graph with the namespaces it references, the unit
// validation and fixing operate on. The fixer mutates it in place.
type Target struct {
	Graph     *flow.Graph
	Variables []model.Variable
	Tools     []*flow.Tool
}
