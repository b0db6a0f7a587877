// Package splitter implements the multi-action-splitter node. The node
// itself only summarizes what its branches did; fan-out scheduling lives
// in the engine, which parses the same Config to decide parallel versus
// sequential dispatch.
package splitter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
)

// Execution modes.
const (
	ModeParallel   = "parallel"
	ModeSequential = "sequential"
)

// Config is the splitter configuration, also consumed by the engine's
// fan-out coordinator.
type Config struct {
	ExecutionMode string
}

// ParseConfig reads and validates a splitter config. The execution mode
// defaults to parallel.
func ParseConfig(config map[string]any) (Config, error) {
	mode, _ := config["executionMode"].(string)
	if mode == "" {
		mode = ModeParallel
	}

	if mode != ModeParallel && mode != ModeSequential {
		return Config{}, fmt.Errorf("unknown executionMode %q", mode)
	}

	return Config{ExecutionMode: mode}, nil
}

// SplitterNode summarizes branch outcomes. It never fails outright: a
// branch failure lowers the summary's success flag but the node completes.
type SplitterNode struct {
	id  string
	cfg Config
}

// NewSplitterNode creates a splitter node.
func NewSplitterNode(id string, config map[string]any) (*SplitterNode, error) {
	cfg, err := ParseConfig(config)
	if err != nil {
		return nil, err
	}

	return &SplitterNode{id: id, cfg: cfg}, nil
}

func (n *SplitterNode) ID() string {
	return n.id
}

func (n *SplitterNode) Kind() string {
	return models.NodeKindSplitter
}

// Mode returns the configured execution mode.
func (n *SplitterNode) Mode() string {
	return n.cfg.ExecutionMode
}

// Execute receives the gathered branch results keyed by branch node ID and
// emits the fan-out summary on the main port.
func (n *SplitterNode) Execute(_ context.Context, _ protocol.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	branches := orderedBranches(inputs)

	results := make([]map[string]any, 0, len(branches))
	failed := 0

	for _, branch := range branches {
		entry := map[string]any{
			"nodeId":  branch.NodeID,
			"success": branch.Error == "" && branch.Status != string(models.NodeStatusFailed),
		}

		if entry["success"] == true {
			entry["result"] = branch.Data
		} else {
			entry["error"] = branch.Error
			failed++
		}

		results = append(results, entry)
	}

	return map[string]models.NodeResult{
		models.PortMain: {
			NodeID: n.id,
			Data: map[string]any{
				"success":       failed == 0,
				"executionMode": n.cfg.ExecutionMode,
				"branchCount":   len(branches),
				"failedCount":   failed,
				"failedActions": failed, // alias, expressions use either name
				"results":       results,
			},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

// orderedBranches sorts branch results chronologically, node ID breaking
// ties so summaries are stable.
func orderedBranches(inputs map[string]models.NodeResult) []models.NodeResult {
	out := make([]models.NodeResult, 0, len(inputs))
	for _, result := range inputs {
		out = append(out, result)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].NodeID < out[j].NodeID
		}

		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out
}
