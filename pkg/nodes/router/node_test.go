package router

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
	"github.com/dealflow/dealflow/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutionContext() protocol.ExecutionContext {
	vars := variables.NewContext()

	return protocol.ExecutionContext{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Variables:   vars,
		Resolver:    variables.NewResolver(vars),
		Logger:      slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
}

func stageRouter(t *testing.T, config map[string]any) *RouterNode {
	t.Helper()

	base := map[string]any{
		"lookup": "${execution.deal.stage}",
		"routes": map[string]any{
			"prospecting": "nurture",
			"negotiation": "escalate",
			"won":         "celebrate",
		},
	}

	for k, v := range config {
		base[k] = v
	}

	node, err := NewRouterNode("router-1", base)
	require.NoError(t, err)

	return node
}

func TestNewRouterNode_RequiresLookupAndRoutes(t *testing.T) {
	_, err := NewRouterNode("r", map[string]any{"routes": map[string]any{"a": "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup")

	_, err = NewRouterNode("r", map[string]any{"lookup": "${execution.x}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routes")

	_, err = NewRouterNode("r", map[string]any{
		"lookup": "${execution.x}",
		"routes": map[string]any{"a": 12},
	})
	require.Error(t, err)
}

func TestRouterNode_SelectsMatchingRoute(t *testing.T) {
	node := stageRouter(t, nil)

	ec := newExecutionContext()
	ec.Variables.Set(variables.ScopeExecution, "deal", map[string]any{"stage": "negotiation"})

	ports, err := node.Execute(context.Background(), ec, nil)
	require.NoError(t, err)

	result, ok := ports["escalate"]
	require.True(t, ok)
	assert.Equal(t, "escalate", result.Data["selectedRoute"])
	assert.Equal(t, "negotiation", result.Data["lookup_value"])
	assert.Equal(t, true, result.Data["matched"])
	assert.Len(t, ports, 1)
}

func TestRouterNode_UnmatchedValueUsesDefaultRoute(t *testing.T) {
	node := stageRouter(t, map[string]any{"default_route": "review"})

	ec := newExecutionContext()
	ec.Variables.Set(variables.ScopeExecution, "deal", map[string]any{"stage": "ghosted"})

	ports, err := node.Execute(context.Background(), ec, nil)
	require.NoError(t, err)

	result, ok := ports["review"]
	require.True(t, ok)
	assert.Equal(t, false, result.Data["matched"])
}

func TestRouterNode_NoDefaultFallsBackToDefaultPort(t *testing.T) {
	node := stageRouter(t, nil)

	ec := newExecutionContext()
	ec.Variables.Set(variables.ScopeExecution, "deal", map[string]any{"stage": "ghosted"})

	ports, err := node.Execute(context.Background(), ec, nil)
	require.NoError(t, err)
	assert.Contains(t, ports, models.PortDefault)
}
