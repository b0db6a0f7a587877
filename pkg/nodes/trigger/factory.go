// Package trigger provides the trigger node factory for registry integration.
package trigger

import (
	"context"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
)

// TriggerNodeFactory creates TriggerNode instances.
type TriggerNodeFactory struct{}

// NewTriggerNodeFactory creates a new factory instance.
func NewTriggerNodeFactory() protocol.NodeFactory {
	return &TriggerNodeFactory{}
}

// Create creates a new TriggerNode instance.
func (f *TriggerNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewTriggerNode(id, config)
}

// Kind returns the factory kind.
func (f *TriggerNodeFactory) Kind() string {
	return models.NodeKindTrigger
}

// Name returns the factory name.
func (f *TriggerNodeFactory) Name() string {
	return "Trigger"
}

// Description returns the factory description.
func (f *TriggerNodeFactory) Description() string {
	return "Starts a workflow run and exposes the trigger data to downstream nodes."
}

// Schema returns the JSON schema for trigger node configuration.
func (f *TriggerNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"trigger_type": map[string]any{
				"type":        "string",
				"description": "How the run was started.",
				"enum":        []string{"manual", "record-event", "schedule", "form-submitted"},
			},
		},
	}
}
