package join

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

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
		Variables:   vars,
		Resolver:    variables.NewResolver(vars),
		Logger:      slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
}

func branchInputs() map[string]models.NodeResult {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	return map[string]models.NodeResult{
		"first": {
			NodeID:    "first",
			Data:      map[string]any{"a": 1, "shared": "first"},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: base,
		},
		"second": {
			NodeID:    "second",
			Data:      map[string]any{"b": 2, "shared": "second"},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: base.Add(time.Second),
		},
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, WaitAll, cfg.WaitMode)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, ErrorFail, cfg.ErrorHandling)
	assert.Equal(t, AggregateMerge, cfg.ResultAggregation)
}

func TestParseConfig_Overrides(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{
		"waitMode":          "any",
		"timeoutSeconds":    float64(5),
		"errorHandling":     "continue",
		"resultAggregation": "array",
	})
	require.NoError(t, err)
	assert.Equal(t, WaitAny, cfg.WaitMode)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, ErrorContinue, cfg.ErrorHandling)
	assert.Equal(t, AggregateArray, cfg.ResultAggregation)
}

func TestParseConfig_RejectsUnknownValues(t *testing.T) {
	_, err := ParseConfig(map[string]any{"waitMode": "most"})
	require.Error(t, err)

	_, err = ParseConfig(map[string]any{"errorHandling": "shrug"})
	require.Error(t, err)

	_, err = ParseConfig(map[string]any{"resultAggregation": "median"})
	require.Error(t, err)
}

func TestJoinNode_MergeAggregation(t *testing.T) {
	node, err := NewJoinNode("join-1", map[string]any{})
	require.NoError(t, err)

	ec := newExecutionContext()

	ports, err := node.Execute(context.Background(), ec, branchInputs())
	require.NoError(t, err)

	data := ports[models.PortMain].Data
	merged := data["joinedResults"].(map[string]any)
	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, 2, merged["b"])
	// Later branches overwrite earlier keys.
	assert.Equal(t, "second", merged["shared"])

	stored, ok := ec.Variables.Get(variables.ScopeExecution, "joinedResults")
	require.True(t, ok)
	assert.Equal(t, merged, stored)
}

func TestJoinNode_ArrayAggregation(t *testing.T) {
	node, err := NewJoinNode("join-1", map[string]any{"resultAggregation": "array"})
	require.NoError(t, err)

	ports, err := node.Execute(context.Background(), newExecutionContext(), branchInputs())
	require.NoError(t, err)

	results := ports[models.PortMain].Data["joinedResults"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].(map[string]any)["shared"])
	assert.Equal(t, "second", results[1].(map[string]any)["shared"])
}

func TestJoinNode_FirstAndLastAggregation(t *testing.T) {
	node, err := NewJoinNode("join-1", map[string]any{"resultAggregation": "first"})
	require.NoError(t, err)

	ports, err := node.Execute(context.Background(), newExecutionContext(), branchInputs())
	require.NoError(t, err)
	assert.Equal(t, "first", ports[models.PortMain].Data["joinedResults"].(map[string]any)["shared"])

	node, err = NewJoinNode("join-1", map[string]any{"resultAggregation": "last"})
	require.NoError(t, err)

	ports, err = node.Execute(context.Background(), newExecutionContext(), branchInputs())
	require.NoError(t, err)
	assert.Equal(t, "second", ports[models.PortMain].Data["joinedResults"].(map[string]any)["shared"])
}

func TestJoinNode_FailedBranchFailsUnderErrorFail(t *testing.T) {
	node, err := NewJoinNode("join-1", map[string]any{})
	require.NoError(t, err)

	inputs := branchInputs()
	inputs["second"] = models.NodeResult{
		NodeID:    "second",
		Status:    string(models.NodeStatusFailed),
		Error:     "timeout calling provider",
		Timestamp: time.Now(),
	}

	_, err = node.Execute(context.Background(), newExecutionContext(), inputs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second")
}

func TestJoinNode_ErrorContinueDropsFailures(t *testing.T) {
	node, err := NewJoinNode("join-1", map[string]any{"errorHandling": "continue"})
	require.NoError(t, err)

	inputs := branchInputs()
	inputs["second"] = models.NodeResult{
		NodeID:    "second",
		Status:    string(models.NodeStatusFailed),
		Error:     "boom",
		Timestamp: time.Now(),
	}

	ports, err := node.Execute(context.Background(), newExecutionContext(), inputs)
	require.NoError(t, err)

	data := ports[models.PortMain].Data
	assert.Equal(t, 2, data["branchCount"])
	assert.Equal(t, 1, data["failedCount"])

	merged := data["joinedResults"].(map[string]any)
	assert.Equal(t, "first", merged["shared"])
	assert.NotContains(t, merged, "b")
}

func TestJoinNode_AllBranchesFailed(t *testing.T) {
	node, err := NewJoinNode("join-1", map[string]any{"errorHandling": "continue"})
	require.NoError(t, err)

	inputs := map[string]models.NodeResult{
		"only": {NodeID: "only", Status: string(models.NodeStatusFailed), Error: "boom", Timestamp: time.Now()},
	}

	_, err = node.Execute(context.Background(), newExecutionContext(), inputs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no branch produced a result")
}
