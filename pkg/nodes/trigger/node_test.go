package trigger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/dealflow/dealflow/pkg/protocol"
	"github.com/dealflow/dealflow/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerNode_PassesTriggerData(t *testing.T) {
	node, err := NewTriggerNode("start", map[string]any{"trigger_type": "record-event"})
	require.NoError(t, err)

	vars := variables.NewContext()
	vars.Set(variables.ScopeExecution, "triggerData", map[string]any{"dealId": "deal-1"})

	ec := protocol.ExecutionContext{
		ExecutionID: "exec-1",
		TriggeredBy: "crm",
		Variables:   vars,
		Resolver:    variables.NewResolver(vars),
		Logger:      slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}

	ports, err := node.Execute(context.Background(), ec, nil)
	require.NoError(t, err)

	result, ok := ports[OutputPortMain]
	require.True(t, ok)
	assert.Equal(t, "record-event", result.Data["trigger_type"])
	assert.Equal(t, "crm", result.Data["triggered_by"])
	assert.Equal(t, "deal-1", result.Data["trigger_data"].(map[string]any)["dealId"])
}

func TestTriggerNode_DefaultsToManual(t *testing.T) {
	node, err := NewTriggerNode("start", map[string]any{})
	require.NoError(t, err)

	vars := variables.NewContext()
	ec := protocol.ExecutionContext{
		Variables: vars,
		Resolver:  variables.NewResolver(vars),
		Logger:    slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}

	ports, err := node.Execute(context.Background(), ec, nil)
	require.NoError(t, err)
	assert.Equal(t, "manual", ports[OutputPortMain].Data["trigger_type"])
}
