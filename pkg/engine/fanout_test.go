package engine

import (
	"context"
	"testing"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ParallelFanOutJoins(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testWorkflow(
		[]*models.WorkflowNode{
			wfNode("start", models.NodeKindTrigger, nil),
			wfNode("split", models.NodeKindSplitter, map[string]any{"executionMode": "parallel"}),
			notifyNode("task-a", "branch a"),
			notifyNode("task-b", "branch b"),
			wfNode("gather", models.NodeKindJoin, nil),
			notifyNode("final", "all branches in"),
		},
		[]*models.Connection{
			wfConn("start", models.PortMain, "split", models.PortMain),
			wfConn("split", models.PortMain, "task-a", models.PortMain),
			wfConn("split", models.PortMain, "task-b", models.PortMain),
			wfConn("task-a", models.PortMain, "gather", models.PortMain),
			wfConn("task-b", models.PortMain, "gather", models.PortMain),
			wfConn("gather", models.PortMain, "final", models.PortMain),
		},
	)

	execution, err := f.engine.Run(context.Background(), workflow, nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.NotNil(t, execution.NodeExecutionFor("task-a"))
	require.NotNil(t, execution.NodeExecutionFor("task-b"))
	require.NotNil(t, execution.NodeExecutionFor("final"))

	split := execution.NodeExecutionFor("split")
	require.NotNil(t, split)
	assert.Equal(t, 2, split.Output["branchCount"])
	assert.Equal(t, true, split.Output["success"])

	gather := execution.NodeExecutionFor("gather")
	require.NotNil(t, gather)
	assert.Equal(t, 2, gather.Output["branchCount"])

	assert.Len(t, f.dispatcher.Sent(), 3)
}

func TestEngine_SequentialFanOutRunsBranchesInOrder(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testWorkflow(
		[]*models.WorkflowNode{
			wfNode("start", models.NodeKindTrigger, nil),
			wfNode("split", models.NodeKindSplitter, map[string]any{"executionMode": "sequential"}),
			wfNode("task-a", models.NodeKindAction, map[string]any{
				"action_type": "create-task",
				"title":       "Call the champion",
			}),
			wfNode("task-b", models.NodeKindAction, map[string]any{
				"action_type": "create-task",
				"title":       "Send the proposal",
			}),
		},
		[]*models.Connection{
			wfConn("start", models.PortMain, "split", models.PortMain),
			wfConn("split", models.PortMain, "task-a", models.PortMain),
			wfConn("split", models.PortMain, "task-b", models.PortMain),
		},
	)

	execution, err := f.engine.Run(context.Background(), workflow, nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	split := execution.NodeExecutionFor("split")
	require.NotNil(t, split)
	assert.Equal(t, true, split.Output["success"])
	assert.Equal(t, 0, split.Output["failedCount"])
}

// cancelAfterListener requests cancellation once a specific node finishes.
type cancelAfterListener struct {
	engine *Engine
	nodeID string
}

func (l *cancelAfterListener) NodeFinished(_ context.Context, execution *models.WorkflowExecution, entry *models.NodeExecution) {
	if entry.NodeID == l.nodeID {
		l.engine.Cancel(execution.ID)
	}
}

func (l *cancelAfterListener) StatusChanged(context.Context, *models.WorkflowExecution) {}

func TestEngine_CancelStopsSequentialFanOut(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Subscribe(&cancelAfterListener{engine: f.engine, nodeID: "task-a"})

	workflow := testWorkflow(
		[]*models.WorkflowNode{
			wfNode("start", models.NodeKindTrigger, nil),
			wfNode("split", models.NodeKindSplitter, map[string]any{"executionMode": "sequential"}),
			notifyNode("task-a", "first branch"),
			notifyNode("task-b", "never reached"),
		},
		[]*models.Connection{
			wfConn("start", models.PortMain, "split", models.PortMain),
			wfConn("split", models.PortMain, "task-a", models.PortMain),
			wfConn("split", models.PortMain, "task-b", models.PortMain),
		},
	)

	execution, err := f.engine.Run(context.Background(), workflow, nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCancelled, execution.Status)
	require.NotNil(t, execution.NodeExecutionFor("task-a"))
	assert.Nil(t, execution.NodeExecutionFor("task-b"))
	assert.Len(t, f.dispatcher.Sent(), 1)
}

func TestEngine_FanOutBranchFailureDoesNotFailRun(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testWorkflow(
		[]*models.WorkflowNode{
			wfNode("start", models.NodeKindTrigger, nil),
			wfNode("split", models.NodeKindSplitter, nil),
			notifyNode("healthy", "fine"),
			// Missing title fails at execution time.
			wfNode("broken", models.NodeKindAction, map[string]any{"action_type": "create-task"}),
		},
		[]*models.Connection{
			wfConn("start", models.PortMain, "split", models.PortMain),
			wfConn("split", models.PortMain, "healthy", models.PortMain),
			wfConn("split", models.PortMain, "broken", models.PortMain),
		},
	)

	execution, err := f.engine.Run(context.Background(), workflow, nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	split := execution.NodeExecutionFor("split")
	require.NotNil(t, split)
	assert.Equal(t, false, split.Output["success"])
	assert.Equal(t, 1, split.Output["failedCount"])
	assert.Equal(t, 1, split.Output["failedActions"])

	require.Len(t, f.dispatcher.Sent(), 1)
}

func TestEngine_JoinContinuesPastFailedBranch(t *testing.T) {
	f := newEngineFixture(t)

	broken := wfNode("broken", models.NodeKindAction, map[string]any{"action_type": "create-task"})
	broken.OnFailure = models.FailurePolicyContinue

	workflow := testWorkflow(
		[]*models.WorkflowNode{
			wfNode("start", models.NodeKindTrigger, nil),
			wfNode("split", models.NodeKindSplitter, nil),
			notifyNode("healthy", "fine"),
			broken,
			wfNode("gather", models.NodeKindJoin, map[string]any{"errorHandling": "continue"}),
			notifyNode("final", "done"),
		},
		[]*models.Connection{
			wfConn("start", models.PortMain, "split", models.PortMain),
			wfConn("split", models.PortMain, "healthy", models.PortMain),
			wfConn("split", models.PortMain, "broken", models.PortMain),
			wfConn("healthy", models.PortMain, "gather", models.PortMain),
			wfConn("broken", models.PortMain, "gather", models.PortMain),
			wfConn("gather", models.PortMain, "final", models.PortMain),
		},
	)

	execution, err := f.engine.Run(context.Background(), workflow, nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.NotNil(t, execution.NodeExecutionFor("final"))

	gather := execution.NodeExecutionFor("gather")
	require.NotNil(t, gather)
	assert.Equal(t, 1, gather.Output["failedCount"])
}

func TestEngine_JoinWaitAnyCompletesWithFirstArrival(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testWorkflow(
		[]*models.WorkflowNode{
			wfNode("start", models.NodeKindTrigger, nil),
			wfNode("route", models.NodeKindCondition, map[string]any{"expression": "true"}),
			notifyNode("fast", "taken"),
			notifyNode("slow", "never runs"),
			wfNode("gather", models.NodeKindJoin, map[string]any{"waitMode": "any"}),
			notifyNode("final", "first one wins"),
		},
		[]*models.Connection{
			wfConn("start", models.PortMain, "route", models.PortMain),
			wfConn("route", models.PortTrue, "fast", models.PortMain),
			wfConn("route", models.PortFalse, "slow", models.PortMain),
			wfConn("fast", models.PortMain, "gather", models.PortMain),
			wfConn("slow", models.PortMain, "gather", models.PortMain),
			wfConn("gather", models.PortMain, "final", models.PortMain),
		},
	)

	execution, err := f.engine.Run(context.Background(), workflow, nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Nil(t, execution.NodeExecutionFor("slow"))
	require.NotNil(t, execution.NodeExecutionFor("final"))

	gather := execution.NodeExecutionFor("gather")
	require.NotNil(t, gather)
	assert.Equal(t, 1, gather.Output["branchCount"])
}

func TestEngine_JoinTimesOutOnMissingBranch(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testWorkflow(
		[]*models.WorkflowNode{
			wfNode("start", models.NodeKindTrigger, nil),
			wfNode("route", models.NodeKindCondition, map[string]any{"expression": "true"}),
			notifyNode("fast", "taken"),
			notifyNode("slow", "never runs"),
			wfNode("gather", models.NodeKindJoin, map[string]any{"timeoutSeconds": 1}),
			notifyNode("final", "unreached"),
		},
		[]*models.Connection{
			wfConn("start", models.PortMain, "route", models.PortMain),
			wfConn("route", models.PortTrue, "fast", models.PortMain),
			wfConn("route", models.PortFalse, "slow", models.PortMain),
			wfConn("fast", models.PortMain, "gather", models.PortMain),
			wfConn("slow", models.PortMain, "gather", models.PortMain),
			wfConn("gather", models.PortMain, "final", models.PortMain),
		},
	)

	execution, err := f.engine.Run(context.Background(), workflow, nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Nil(t, execution.NodeExecutionFor("final"))

	gather := execution.NodeExecutionFor("gather")
	require.NotNil(t, gather)
	assert.Equal(t, models.NodeStatusFailed, gather.Status)

	require.Len(t, execution.Errors, 1)
	assert.Contains(t, execution.Errors[0].Error, "join")
}

func TestEngine_DirectSplitterToJoinCountsAsBranch(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testWorkflow(
		[]*models.WorkflowNode{
			wfNode("start", models.NodeKindTrigger, nil),
			wfNode("split", models.NodeKindSplitter, nil),
			notifyNode("task-a", "only real branch"),
			wfNode("gather", models.NodeKindJoin, nil),
		},
		[]*models.Connection{
			wfConn("start", models.PortMain, "split", models.PortMain),
			wfConn("split", models.PortMain, "task-a", models.PortMain),
			wfConn("split", models.PortMain, "gather", models.PortMain),
			wfConn("task-a", models.PortMain, "gather", models.PortMain),
		},
	)

	execution, err := f.engine.Run(context.Background(), workflow, nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	gather := execution.NodeExecutionFor("gather")
	require.NotNil(t, gather)
	assert.Equal(t, 2, gather.Output["branchCount"])
}
