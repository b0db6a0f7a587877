// Package trigger provides the entry node that starts a workflow run from
// trigger data (manual runs, CRM record events, schedules).
package trigger

import (
	"context"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
	"github.com/dealflow/dealflow/pkg/variables"
)

const OutputPortMain = models.PortMain

// TriggerNode passes the run's trigger data into the graph. It is the only
// node the walker starts from.
type TriggerNode struct {
	id          string
	triggerType string
}

// NewTriggerNode creates a trigger node. trigger_type is informational
// (manual, record-event, schedule); the walker supplies the data either way.
func NewTriggerNode(id string, config map[string]any) (*TriggerNode, error) {
	triggerType := "manual"
	if t, ok := config["trigger_type"].(string); ok && t != "" {
		triggerType = t
	}

	return &TriggerNode{id: id, triggerType: triggerType}, nil
}

func (n *TriggerNode) ID() string {
	return n.id
}

func (n *TriggerNode) Kind() string {
	return models.NodeKindTrigger
}

// Execute surfaces the execution-scope trigger data as the node's output.
func (n *TriggerNode) Execute(_ context.Context, ec protocol.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	data := map[string]any{
		"trigger_type": n.triggerType,
		"triggered_by": ec.TriggeredBy,
	}

	if triggerData, ok := ec.Variables.Get(variables.ScopeExecution, "triggerData"); ok {
		data["trigger_data"] = triggerData
	}

	return map[string]models.NodeResult{
		OutputPortMain: {
			NodeID:    n.id,
			Data:      data,
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}
