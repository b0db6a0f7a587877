package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortID(t *testing.T) {
	cases := []struct {
		portID string
		nodeID string
		port   string
		ok     bool
	}{
		{"check:true", "check", "true", true},
		{"notify:main", "notify", "main", true},
		{"a:b:c", "a", "b:c", true},
		{"noseparator", "", "", false},
		{"", "", "", false},
	}

	for _, tc := range cases {
		nodeID, port, ok := ParsePortID(tc.portID)
		assert.Equal(t, tc.ok, ok, tc.portID)
		assert.Equal(t, tc.nodeID, nodeID, tc.portID)
		assert.Equal(t, tc.port, port, tc.portID)
	}
}

func TestMakePortIDRoundTrip(t *testing.T) {
	id := MakePortID("router", "stage_won")

	nodeID, port, ok := ParsePortID(id)
	require.True(t, ok)
	assert.Equal(t, "router", nodeID)
	assert.Equal(t, "stage_won", port)
}

func TestConnectionEndpoints(t *testing.T) {
	conn := &Connection{
		SourcePort: MakePortID("check", PortTrue),
		TargetPort: MakePortID("notify", PortMain),
	}

	assert.Equal(t, "check", conn.SourceNode())
	assert.Equal(t, "notify", conn.TargetNode())
}

func graphFixture() *Workflow {
	return &Workflow{
		ID:     "wf-1",
		Name:   "Pipeline hygiene",
		Status: WorkflowStatusPublished,
		Nodes: []*WorkflowNode{
			{ID: "start", Kind: NodeKindTrigger, Enabled: true},
			{ID: "check", Kind: NodeKindCondition, Enabled: true},
			{ID: "notify", Kind: NodeKindAction, Enabled: true},
		},
		Connections: []*Connection{
			{SourcePort: MakePortID("start", PortMain), TargetPort: MakePortID("check", PortMain)},
			{SourcePort: MakePortID("check", PortTrue), TargetPort: MakePortID("notify", PortMain)},
		},
	}
}

func TestWorkflowGraphLookups(t *testing.T) {
	workflow := graphFixture()

	require.NotNil(t, workflow.NodeByID("check"))
	assert.Nil(t, workflow.NodeByID("ghost"))

	outgoing := workflow.OutgoingConnections("check")
	require.Len(t, outgoing, 1)
	assert.Equal(t, "notify", outgoing[0].TargetNode())

	incoming := workflow.IncomingConnections("check")
	require.Len(t, incoming, 1)
	assert.Equal(t, "start", incoming[0].SourceNode())

	assert.Empty(t, workflow.OutgoingConnections("notify"))
}

func TestTriggerNodes(t *testing.T) {
	workflow := graphFixture()

	triggers := workflow.TriggerNodes()
	require.Len(t, triggers, 1)
	assert.Equal(t, "start", triggers[0].ID)

	// An orphan node with no incoming edges counts as an entry point too.
	workflow.Nodes = append(workflow.Nodes, &WorkflowNode{ID: "orphan", Kind: NodeKindAction})
	assert.Len(t, workflow.TriggerNodes(), 2)
}

func TestFailurePolicyOrDefault(t *testing.T) {
	node := &WorkflowNode{ID: "n1"}
	assert.Equal(t, FailurePolicyStop, node.FailurePolicyOrDefault())

	node.OnFailure = FailurePolicyContinue
	assert.Equal(t, FailurePolicyContinue, node.FailurePolicyOrDefault())

	node.OnFailure = "bogus"
	assert.Equal(t, FailurePolicyStop, node.FailurePolicyOrDefault())
}

func TestRecordError(t *testing.T) {
	execution := &WorkflowExecution{ID: "exec-1"}
	execution.RecordError("broken", errors.New("boom"))

	require.Len(t, execution.Errors, 1)
	assert.Equal(t, "broken", execution.Errors[0].NodeID)
	assert.Equal(t, "boom", execution.Errors[0].Error)
	assert.False(t, execution.Errors[0].Timestamp.IsZero())
}

func TestExecutionStatusIsTerminal(t *testing.T) {
	assert.True(t, ExecutionStatusCompleted.IsTerminal())
	assert.True(t, ExecutionStatusFailed.IsTerminal())
	assert.True(t, ExecutionStatusCancelled.IsTerminal())
	assert.False(t, ExecutionStatusRunning.IsTerminal())
	assert.False(t, ExecutionStatusWaitingHITL.IsTerminal())
}
