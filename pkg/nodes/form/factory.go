package form

import (
	"context"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
)

// FormNodeFactory creates FormNode instances.
type FormNodeFactory struct{}

// NewFormNodeFactory creates a new factory instance.
func NewFormNodeFactory() protocol.NodeFactory {
	return &FormNodeFactory{}
}

func (f *FormNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewFormNode(id, config)
}

func (f *FormNodeFactory) Kind() string {
	return models.NodeKindForm
}

func (f *FormNodeFactory) Name() string {
	return "Form"
}

func (f *FormNodeFactory) Description() string {
	return "Validates a submitted form and exposes its fields as execution variables."
}

func (f *FormNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fields": map[string]any{
				"type":        "array",
				"description": "Declared form fields.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":     map[string]any{"type": "string"},
						"required": map[string]any{"type": "boolean"},
						"default":  map[string]any{},
					},
					"required": []string{"name"},
				},
			},
		},
		"required": []string{"fields"},
	}
}
