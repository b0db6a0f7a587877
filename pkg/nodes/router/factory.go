package router

import (
	"context"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
)

// RouterNodeFactory creates RouterNode instances.
type RouterNodeFactory struct{}

// NewRouterNodeFactory creates a new factory instance.
func NewRouterNodeFactory() protocol.NodeFactory {
	return &RouterNodeFactory{}
}

func (f *RouterNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewRouterNode(id, config)
}

func (f *RouterNodeFactory) Kind() string {
	return models.NodeKindRouter
}

func (f *RouterNodeFactory) Name() string {
	return "Router"
}

func (f *RouterNodeFactory) Description() string {
	return "Selects one named route from a static table based on a context value (stage, priority, owner)."
}

func (f *RouterNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"lookup": map[string]any{
				"type":        "string",
				"description": "Reference resolved against the context, e.g. ${execution.deal.stage}.",
			},
			"routes": map[string]any{
				"type":        "object",
				"description": "Lookup value to route name table.",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"default_route": map[string]any{
				"type":        "string",
				"description": "Route used when no table entry matches.",
			},
		},
		"required": []string{"lookup", "routes"},
	}
}
