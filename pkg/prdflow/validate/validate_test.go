package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/validate"
)

// validTarget builds a minimal clean graph: start -> collect -> end.
func validTarget() *validate.Target {
	g := flow.NewGraph()
	g.StartNodeID = "start"
	g.Nodes["start"] = &flow.Node{
		ID: "start", Type: flow.NodeStart, Name: "Start",
		Data: map[string]any{"system_prompt": "You are a bot."},
	}
	g.Nodes["ask-name"] = &flow.Node{
		ID: "ask-name", Type: flow.NodeCollect, Name: "Ask name",
		Data: map[string]any{"variable": "customer_name", "prompt": "What is your name?"},
	}
	g.Nodes["end"] = &flow.Node{
		ID: "end", Type: flow.NodeEnd, Name: "End",
		Data: map[string]any{"message": "Goodbye."},
	}
	g.Exits = []*flow.Exit{
		{ID: "exit-start-to-ask-name", SourceNodeID: "start", TargetNodeID: "ask-name"},
		{ID: "exit-ask-name-to-end", SourceNodeID: "ask-name", TargetNodeID: "end"},
	}

	return &validate.Target{
		Graph: g,
		Variables: []model.Variable{
			{Name: "customer_name", Type: model.TypeString, Source: model.SourceCollect},
		},
	}
}

func TestValidateCleanGraph(t *testing.T) {
	r := validate.New().Validate(validTarget())
	assert.Empty(t, r.Issues)
	assert.True(t, r.Valid())
}

func TestValidateStructuralErrors(t *testing.T) {
	t.Run("no start node id", func(t *testing.T) {
		target := validTarget()
		target.Graph.StartNodeID = ""
		r := validate.New().Validate(target)
		assert.NotEmpty(t, r.ByCode(validate.NoStartNode))
		assert.False(t, r.Valid())
	})

	t.Run("start id points nowhere", func(t *testing.T) {
		target := validTarget()
		target.Graph.StartNodeID = "missing"
		r := validate.New().Validate(target)
		assert.NotEmpty(t, r.ByCode(validate.InvalidStartNode))
	})

	t.Run("no terminal is a warning", func(t *testing.T) {
		target := validTarget()
		delete(target.Graph.Nodes, "end")
		target.Graph.Exits = target.Graph.Exits[:1]
		r := validate.New().Validate(target)
		issues := r.ByCode(validate.NoEndNode)
		require.Len(t, issues, 1)
		assert.Equal(t, validate.SeverityWarning, issues[0].Severity)
		// Still publishable without strict mode.
		assert.True(t, r.Valid())
	})
}

func TestValidateNodeRules(t *testing.T) {
	t.Run("collect without variable", func(t *testing.T) {
		target := validTarget()
		delete(target.Graph.Nodes["ask-name"].Data, "variable")
		r := validate.New().Validate(target)
		assert.NotEmpty(t, r.ByCode(validate.CollectNoVariable))
	})

	t.Run("api without tool", func(t *testing.T) {
		target := validTarget()
		target.Graph.Nodes["ask-name"] = &flow.Node{
			ID: "ask-name", Type: flow.NodeAPI, Name: "Call", Data: map[string]any{},
		}
		r := validate.New().Validate(target)
		assert.NotEmpty(t, r.ByCode(validate.APINoToolID))
	})

	t.Run("api with unknown tool", func(t *testing.T) {
		target := validTarget()
		target.Graph.Nodes["ask-name"] = &flow.Node{
			ID: "ask-name", Type: flow.NodeAPI, Name: "Call",
			Data: map[string]any{"tool_id": "nonexistent"},
		}
		r := validate.New().Validate(target)
		assert.NotEmpty(t, r.ByCode(validate.InvalidToolReference))
	})

	t.Run("conversation with extractions", func(t *testing.T) {
		target := validTarget()
		target.Graph.Nodes["ask-name"] = &flow.Node{
			ID: "ask-name", Type: flow.NodeConversation, Name: "Chat",
			Data: map[string]any{"extraction_fields": []any{map[string]any{"name": "x"}}},
		}
		r := validate.New().Validate(target)
		assert.NotEmpty(t, r.ByCode(validate.ConversationExtractions))
	})

	t.Run("unknown node type", func(t *testing.T) {
		target := validTarget()
		target.Graph.Nodes["ask-name"].Type = "teleport"
		r := validate.New().Validate(target)
		assert.NotEmpty(t, r.ByCode(validate.UnknownNodeType))
	})
}

func TestValidateExitsAndVariables(t *testing.T) {
	target := validTarget()
	target.Graph.Exits = append(target.Graph.Exits,
		&flow.Exit{ID: "exit-ask-name-to-end", SourceNodeID: "ask-name", TargetNodeID: "end"},
		&flow.Exit{ID: "exit-ghost", SourceNodeID: "ghost", TargetNodeID: "end"},
	)
	target.Variables = append(target.Variables,
		model.Variable{Name: "customer_name", Type: model.TypeNumber, Source: model.SourceCollect},
		model.Variable{Name: "", Type: model.TypeString, Source: model.SourceCollect},
		model.Variable{Name: "weird", Type: model.TypeString, Source: "telepathy"},
	)

	r := validate.New().Validate(target)
	assert.NotEmpty(t, r.ByCode(validate.DuplicateExitID))
	assert.NotEmpty(t, r.ByCode(validate.InvalidExitSource))
	assert.NotEmpty(t, r.ByCode(validate.DuplicateVariable))
	assert.NotEmpty(t, r.ByCode(validate.VariableNoName))
	assert.NotEmpty(t, r.ByCode(validate.InvalidVariableSource))
}

func TestValidateExpressions(t *testing.T) {
	target := validTarget()
	target.Graph.Exits[1].Condition = &flow.Condition{Expression: `customer_name == "Dana"`}
	r := validate.New().Validate(target)
	assert.Empty(t, r.Issues, "declared variable reference should be clean")

	target.Graph.Exits[1].Condition = &flow.Condition{Expression: `balance > 100`}
	r = validate.New().Validate(target)
	issues := r.ByCode(validate.UndefinedVariableRef)
	require.Len(t, issues, 1)
	assert.Equal(t, "balance", issues[0].Variable)

	target.Graph.Exits[1].Condition = &flow.Condition{Expression: "the order is late"}
	r = validate.New().Validate(target)
	assert.NotEmpty(t, r.ByCode(validate.InvalidConditionExpr))
	// Prose conditions are advisory only.
	assert.True(t, r.Valid())
}

func TestValidateReachability(t *testing.T) {
	target := validTarget()
	target.Graph.Nodes["island"] = &flow.Node{
		ID: "island", Type: flow.NodeConversation, Name: "Island",
		Data: map[string]any{"prompt": "hello"},
	}

	r := validate.New().Validate(target)
	orphans := r.ByCode(validate.OrphanedNode)
	require.Len(t, orphans, 1)
	assert.Equal(t, "island", orphans[0].NodeID)
	deadEnds := r.ByCode(validate.DeadEndNode)
	require.Len(t, deadEnds, 1)
	assert.Equal(t, "island", deadEnds[0].NodeID)
}

func TestStrictModePromotesWarnings(t *testing.T) {
	target := validTarget()
	target.Graph.Nodes["ask-name"].Data["prompt"] = ""

	r := validate.New().Validate(target)
	assert.True(t, r.Valid())

	r = validate.New(validate.Strict()).Validate(target)
	assert.False(t, r.Valid())
}

func TestFixerDanglingNodeOneIteration(t *testing.T) {
	target := validTarget()
	// A reachable conversation node with no way forward.
	target.Graph.Nodes["dangling"] = &flow.Node{
		ID: "dangling", Type: flow.NodeConversation, Name: "Dangling",
		Data: map[string]any{"prompt": "hm"},
	}
	target.Graph.Exits = append(target.Graph.Exits,
		&flow.Exit{ID: "exit-ask-name-to-dangling", SourceNodeID: "ask-name", TargetNodeID: "dangling"})

	fixer := validate.NewFixer(validate.New())
	res := fixer.Fix(target)

	assert.Equal(t, 1, res.Iterations)
	assert.True(t, res.Report.Valid())
	assert.Empty(t, res.Report.Issues)

	exits := target.Graph.OutgoingExits("dangling")
	require.Len(t, exits, 1)
	assert.Equal(t, "end", exits[0].TargetNodeID)
}

func TestFixerCleanTargetNoIterations(t *testing.T) {
	res := validate.NewFixer(validate.New()).Fix(validTarget())
	assert.Zero(t, res.Iterations)
	assert.Empty(t, res.Applied)
}

func TestFixerOrphanModes(t *testing.T) {
	island := func() *validate.Target {
		target := validTarget()
		target.Graph.Nodes["island"] = &flow.Node{
			ID: "island", Type: flow.NodeConversation, Name: "Island",
			Data: map[string]any{"prompt": "hello"},
		}
		return target
	}

	t.Run("connect", func(t *testing.T) {
		target := island()
		res := validate.NewFixer(validate.New()).Fix(target)
		assert.True(t, res.Report.Valid())
		assert.Contains(t, target.Graph.Nodes, "island")
		assert.NotEmpty(t, target.Graph.IncomingExits("island"))
	})

	t.Run("remove", func(t *testing.T) {
		target := island()
		res := validate.NewFixer(validate.New(), validate.OrphanMode(validate.OrphanRemove)).Fix(target)
		assert.True(t, res.Report.Valid())
		assert.NotContains(t, target.Graph.Nodes, "island")
	})
}

func TestFixerUnfixableIssuesStop(t *testing.T) {
	target := validTarget()
	delete(target.Graph.Nodes["ask-name"].Data, "variable")

	res := validate.NewFixer(validate.New()).Fix(target)
	// COLLECT_NO_VARIABLE cannot be repaired; the loop stops without
	// spinning to the ceiling.
	assert.Zero(t, res.Iterations)
	assert.NotEmpty(t, res.Report.ByCode(validate.CollectNoVariable))
	assert.False(t, validate.Fixable(validate.CollectNoVariable))
}

func TestFixerDeclaresReferencedVariables(t *testing.T) {
	target := validTarget()
	target.Graph.Exits[1].Condition = &flow.Condition{Expression: "balance > 100"}

	res := validate.NewFixer(validate.New()).Fix(target)
	assert.True(t, res.Report.Valid())
	assert.Empty(t, res.Report.Issues)

	var found *model.Variable
	for i := range target.Variables {
		if target.Variables[i].Name == "balance" {
			found = &target.Variables[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, model.ModeDeducible, found.Mode)
}

func TestFixerCoercesInvalidVariableSource(t *testing.T) {
	target := validTarget()
	target.Variables = append(target.Variables,
		model.Variable{Name: "weird", Type: model.TypeString, Source: "telepathy"})

	res := validate.NewFixer(validate.New()).Fix(target)
	assert.True(t, res.Report.Valid())
	assert.Empty(t, res.Report.ByCode(validate.InvalidVariableSource))
	assert.Equal(t, model.SourceCollect, target.Variables[1].Source)
	assert.True(t, validate.Fixable(validate.InvalidVariableSource))
}

func TestFixerRelocatesExtractionFields(t *testing.T) {
	fields := []any{map[string]any{"name": "customer_name"}}
	target := validTarget()
	target.Graph.Nodes["ask-name"] = &flow.Node{
		ID: "ask-name", Type: flow.NodeConversation, Name: "Chat",
		Data: map[string]any{"prompt": "How can I help?", "extraction_fields": fields},
	}

	res := validate.NewFixer(validate.New()).Fix(target)
	assert.True(t, res.Report.Valid())
	assert.Empty(t, res.Report.ByCode(validate.ConversationExtractions))

	// The fields move into a collect node spliced in front of the
	// conversation node, not into the void.
	collect, ok := target.Graph.Nodes["ask-name-collect"]
	require.True(t, ok)
	assert.Equal(t, flow.NodeCollect, collect.Type)
	assert.Equal(t, fields, collect.Data["fields"])
	assert.Equal(t, "customer_name", collect.Data["variable"])
	assert.Empty(t, target.Graph.Nodes["ask-name"].Data["extraction_fields"])

	in := target.Graph.IncomingExits("ask-name")
	require.Len(t, in, 1)
	assert.Equal(t, "ask-name-collect", in[0].SourceNodeID)
	in = target.Graph.IncomingExits("ask-name-collect")
	require.Len(t, in, 1)
	assert.Equal(t, "start", in[0].SourceNodeID)
}

func TestFixerSynthesizesStartNode(t *testing.T) {
	target := validTarget()
	delete(target.Graph.Nodes, "start")
	target.Graph.StartNodeID = ""
	target.Graph.Exits = target.Graph.Exits[1:]

	res := validate.NewFixer(validate.New()).Fix(target)
	assert.True(t, res.Report.Valid())
	assert.Empty(t, res.Report.ByCode(validate.NoStartNode))

	start, ok := target.Graph.Nodes["start"]
	require.True(t, ok)
	assert.Equal(t, flow.NodeStart, start.Type)
	assert.Equal(t, "start", target.Graph.StartNodeID)

	// The synthesized start wires into the graph's entry node once.
	out := target.Graph.OutgoingExits("start")
	require.Len(t, out, 1)
	assert.Equal(t, "ask-name", out[0].TargetNodeID)
}

func TestFixerStopsWithoutStrictProgress(t *testing.T) {
	target := validTarget()
	// An unreachable conversation node carrying extraction fields:
	// relocating the fields and removing the orphan trades one issue
	// pair for another, so the pass makes no net progress.
	target.Graph.Nodes["chat"] = &flow.Node{
		ID: "chat", Type: flow.NodeConversation, Name: "Chat",
		Data: map[string]any{"extraction_fields": []any{"notes"}},
	}
	target.Graph.Exits = append(target.Graph.Exits,
		&flow.Exit{ID: "exit-chat-to-end", SourceNodeID: "chat", TargetNodeID: "end"})

	res := validate.NewFixer(validate.New(),
		validate.OrphanMode(validate.OrphanRemove), validate.MaxIterations(10)).Fix(target)

	assert.Equal(t, 1, res.Iterations)
	assert.NotEmpty(t, res.Applied)
	assert.NotEmpty(t, res.Report.Issues)
}

func TestFixerIterationCeiling(t *testing.T) {
	target := validTarget()
	target.Graph.Nodes["island"] = &flow.Node{
		ID: "island", Type: flow.NodeConversation, Name: "Island",
		Data: map[string]any{"prompt": "hello"},
	}

	res := validate.NewFixer(validate.New(), validate.MaxIterations(1)).Fix(target)
	assert.LessOrEqual(t, res.Iterations, 1)
}
