package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

func TestKebab(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"F-01", "f-01"},
		{"order_number", "order-number"},
		{"TrackOrder", "track-order"},
		{"  Collect  Name ", "collect-name"},
		{"already-kebab", "already-kebab"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, flow.Kebab(tt.in), "input %q", tt.in)
	}
}

func TestSnake(t *testing.T) {
	assert.Equal(t, "track_order", flow.Snake("Track Order"))
	assert.Equal(t, "get_customer_info", flow.Snake("GetCustomerInfo"))
}

func TestAddNodeCollisionSuffix(t *testing.T) {
	ctx := flow.NewContext()

	a := ctx.AddNode(&flow.Node{ID: "f-01-1-collect", Type: flow.NodeCollect, Data: map[string]any{}})
	b := ctx.AddNode(&flow.Node{ID: "f-01-1-collect", Type: flow.NodeCollect, Data: map[string]any{}})
	c := ctx.AddNode(&flow.Node{ID: "f-01-1-collect", Type: flow.NodeCollect, Data: map[string]any{}})

	assert.Equal(t, "f-01-1-collect", a.ID)
	assert.Equal(t, "f-01-1-collect-2", b.ID)
	assert.Equal(t, "f-01-1-collect-3", c.ID)
	assert.Len(t, ctx.Graph().Nodes, 3)
}

func TestConnectExitIDs(t *testing.T) {
	ctx := flow.NewContext()
	a := ctx.AddNode(&flow.Node{ID: "a", Type: flow.NodeStart, Data: map[string]any{}})
	b := ctx.AddNode(&flow.Node{ID: "b", Type: flow.NodeEnd, Data: map[string]any{}})

	first := ctx.Connect(a, b, "Continue", nil, 0)
	second := ctx.Connect(a, b, "Retry", nil, 1)

	assert.Equal(t, "exit-a-to-b", first.ID)
	assert.Equal(t, "exit-a-to-b-2", second.ID)
	assert.Nil(t, first.Condition)
	require.Len(t, ctx.Graph().Exits, 2)
}

func TestDeclareVariableFirstWins(t *testing.T) {
	ctx := flow.NewContext()

	v1, err := ctx.DeclareVariable(model.Variable{
		Name: "order_number", Type: model.TypeString, Source: model.SourceCollect,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TypeString, v1.Type)

	// Same name, same type, different source: first declaration wins,
	// downgraded to a warning.
	v2, err := ctx.DeclareVariable(model.Variable{
		Name: "order_number", Type: model.TypeString, Source: model.SourceTool,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SourceCollect, v2.Source)
	assert.Len(t, ctx.Warnings(), 1)
	assert.Len(t, ctx.Variables(), 1)
}

func TestDeclareVariableTypeConflictFatal(t *testing.T) {
	ctx := flow.NewContext()

	_, err := ctx.DeclareVariable(model.Variable{Name: "amount", Type: model.TypeNumber})
	require.NoError(t, err)

	_, err = ctx.DeclareVariable(model.Variable{Name: "amount", Type: model.TypeString})
	require.Error(t, err)

	var conflict *flow.VariableConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "amount", conflict.Name)
	assert.Equal(t, model.TypeNumber, conflict.Declared)
}

func TestDeclareToolDeduplicates(t *testing.T) {
	ctx := flow.NewContext()
	api := &model.API{
		Name:         "Track Order",
		FunctionName: "track_order",
		Method:       model.MethodGet,
		Endpoint:     "/orders/{id}",
		Parameters: []model.Param{
			{Name: "order_number", Type: model.TypeString, Required: true},
		},
	}

	t1 := ctx.DeclareTool(api)
	t2 := ctx.DeclareTool(api)

	assert.Same(t, t1, t2)
	assert.Len(t, ctx.Tools(), 1)
	assert.Equal(t, "track_order", t1.FunctionName())
	assert.Equal(t, "http", t1.Type)
	assert.NotEmpty(t, t1.OriginalID)
	assert.Equal(t, "GET", t1.ExecutionConfig["method"])
	assert.Same(t, t1, ctx.ToolByFunctionName("track_order"))
	assert.Nil(t, ctx.ToolByFunctionName("missing"))
}

func TestPositionsFollowGrid(t *testing.T) {
	ctx := flow.NewContext()

	var nodes []*flow.Node
	for i := 0; i < 7; i++ {
		nodes = append(nodes, ctx.AddNode(&flow.Node{
			ID: "n", Type: flow.NodeConversation, Data: map[string]any{},
		}))
	}

	assert.Equal(t, flow.Position{X: 100, Y: 100}, nodes[0].Position)
	assert.Equal(t, flow.Position{X: 400, Y: 100}, nodes[1].Position)
	// Sixth node wraps to the second row.
	assert.Equal(t, flow.Position{X: 100, Y: 300}, nodes[5].Position)
	assert.Equal(t, flow.Position{X: 400, Y: 300}, nodes[6].Position)
}

func TestReachable(t *testing.T) {
	ctx := flow.NewContext()
	start := ctx.AddNode(&flow.Node{ID: "start", Type: flow.NodeStart, Data: map[string]any{}})
	ctx.SetStart(start)
	mid := ctx.AddNode(&flow.Node{ID: "mid", Type: flow.NodeConversation, Data: map[string]any{}})
	end := ctx.AddNode(&flow.Node{ID: "end", Type: flow.NodeEnd, Data: map[string]any{}})
	orphan := ctx.AddNode(&flow.Node{ID: "orphan", Type: flow.NodeConversation, Data: map[string]any{}})

	ctx.Connect(start, mid, "Continue", nil, 0)
	ctx.Connect(mid, end, "Complete", nil, 0)

	reachable := ctx.Graph().Reachable()
	assert.True(t, reachable[start.ID])
	assert.True(t, reachable[mid.ID])
	assert.True(t, reachable[end.ID])
	assert.False(t, reachable[orphan.ID])
}
