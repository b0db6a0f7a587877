package splitter

import (
	"context"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
)

// SplitterNodeFactory creates SplitterNode instances.
type SplitterNodeFactory struct{}

// NewSplitterNodeFactory creates a new factory instance.
func NewSplitterNodeFactory() protocol.NodeFactory {
	return &SplitterNodeFactory{}
}

func (f *SplitterNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewSplitterNode(id, config)
}

func (f *SplitterNodeFactory) Kind() string {
	return models.NodeKindSplitter
}

func (f *SplitterNodeFactory) Name() string {
	return "Multi-Action Splitter"
}

func (f *SplitterNodeFactory) Description() string {
	return "Fans out to every outgoing branch, parallel or sequential, and summarizes the branch outcomes."
}

func (f *SplitterNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"executionMode": map[string]any{
				"type":    "string",
				"enum":    []string{ModeParallel, ModeSequential},
				"default": ModeParallel,
			},
		},
	}
}
