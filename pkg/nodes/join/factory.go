package join

import (
	"context"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
)

// JoinNodeFactory creates JoinNode instances.
type JoinNodeFactory struct{}

// NewJoinNodeFactory creates a new factory instance.
func NewJoinNodeFactory() protocol.NodeFactory {
	return &JoinNodeFactory{}
}

func (f *JoinNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewJoinNode(id, config)
}

func (f *JoinNodeFactory) Kind() string {
	return models.NodeKindJoin
}

func (f *JoinNodeFactory) Name() string {
	return "Join"
}

func (f *JoinNodeFactory) Description() string {
	return "Waits for incoming branches and aggregates their results into one output."
}

func (f *JoinNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"waitMode": map[string]any{
				"type":    "string",
				"enum":    []string{WaitAll, WaitAny},
				"default": WaitAll,
			},
			"timeoutSeconds": map[string]any{
				"type":    "number",
				"minimum": 0,
				"default": 60,
			},
			"errorHandling": map[string]any{
				"type":    "string",
				"enum":    []string{ErrorFail, ErrorContinue},
				"default": ErrorFail,
			},
			"resultAggregation": map[string]any{
				"type":    "string",
				"enum":    []string{AggregateMerge, AggregateArray, AggregateFirst, AggregateLast},
				"default": AggregateMerge,
			},
		},
	}
}
