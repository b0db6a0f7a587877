package condition

import (
	"context"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
)

// ConditionNodeFactory creates ConditionNode instances.
type ConditionNodeFactory struct{}

// NewConditionNodeFactory creates a new factory instance.
func NewConditionNodeFactory() protocol.NodeFactory {
	return &ConditionNodeFactory{}
}

func (f *ConditionNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewConditionNode(id, config)
}

func (f *ConditionNodeFactory) Kind() string {
	return models.NodeKindCondition
}

func (f *ConditionNodeFactory) Name() string {
	return "Condition"
}

func (f *ConditionNodeFactory) Description() string {
	return "Evaluates a boolean expression and routes execution to the true or false path."
}

func (f *ConditionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Boolean expression evaluated against the variable context.",
				"examples": []string{
					`execution.deal.value > 10000`,
					`workflow.previousOutput.success == true`,
					`execution.formData.priority == "high"`,
				},
			},
		},
		"required": []string{"expression"},
	}
}
