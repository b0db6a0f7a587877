// Package join implements the join barrier node. Waiting on branches is
// the engine's job; the node aggregates whatever arrived according to its
// configured policy, and the engine consults the same Config for wait
// mode, timeout and error handling.
package join

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
	"github.com/dealflow/dealflow/pkg/variables"
)

// Wait modes.
const (
	WaitAll = "all"
	WaitAny = "any"
)

// Error handling policies.
const (
	ErrorFail     = "fail"
	ErrorContinue = "continue"
)

// Aggregation policies.
const (
	AggregateMerge = "merge"
	AggregateArray = "array"
	AggregateFirst = "first"
	AggregateLast  = "last"
)

// DefaultTimeout bounds the barrier wait when timeoutSeconds is absent.
const DefaultTimeout = 60 * time.Second

// Config is the join configuration, also consumed by the engine's barrier.
type Config struct {
	WaitMode          string
	Timeout           time.Duration
	ErrorHandling     string
	ResultAggregation string
}

// ParseConfig reads and validates a join config.
func ParseConfig(config map[string]any) (Config, error) {
	cfg := Config{
		WaitMode:          WaitAll,
		Timeout:           DefaultTimeout,
		ErrorHandling:     ErrorFail,
		ResultAggregation: AggregateMerge,
	}

	if mode, ok := config["waitMode"].(string); ok && mode != "" {
		if mode != WaitAll && mode != WaitAny {
			return cfg, fmt.Errorf("unknown waitMode %q", mode)
		}

		cfg.WaitMode = mode
	}

	switch v := config["timeoutSeconds"].(type) {
	case float64:
		cfg.Timeout = time.Duration(v * float64(time.Second))
	case int:
		cfg.Timeout = time.Duration(v) * time.Second
	}

	if handling, ok := config["errorHandling"].(string); ok && handling != "" {
		if handling != ErrorFail && handling != ErrorContinue {
			return cfg, fmt.Errorf("unknown errorHandling %q", handling)
		}

		cfg.ErrorHandling = handling
	}

	if agg, ok := config["resultAggregation"].(string); ok && agg != "" {
		switch agg {
		case AggregateMerge, AggregateArray, AggregateFirst, AggregateLast:
		default:
			return cfg, fmt.Errorf("unknown resultAggregation %q", agg)
		}

		cfg.ResultAggregation = agg
	}

	return cfg, nil
}

// JoinNode aggregates branch results delivered by the engine's barrier.
type JoinNode struct {
	id  string
	cfg Config
}

// NewJoinNode creates a join node.
func NewJoinNode(id string, config map[string]any) (*JoinNode, error) {
	cfg, err := ParseConfig(config)
	if err != nil {
		return nil, err
	}

	return &JoinNode{id: id, cfg: cfg}, nil
}

func (n *JoinNode) ID() string {
	return n.id
}

func (n *JoinNode) Kind() string {
	return models.NodeKindJoin
}

// Config returns the parsed join configuration.
func (n *JoinNode) Config() Config {
	return n.cfg
}

// Execute aggregates the branch results keyed by branch node ID. Under
// errorHandling=fail any failed branch fails the node; under continue the
// failures are dropped and the successes aggregated. The aggregate is
// written to the execution scope as joinedResults before being emitted.
func (n *JoinNode) Execute(_ context.Context, ec protocol.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	branches := orderedBranches(inputs)

	var (
		successes []models.NodeResult
		failures  []models.NodeResult
	)

	for _, branch := range branches {
		if branch.Error != "" || branch.Status == string(models.NodeStatusFailed) {
			failures = append(failures, branch)

			continue
		}

		successes = append(successes, branch)
	}

	if n.cfg.ErrorHandling == ErrorFail && len(failures) > 0 {
		return nil, fmt.Errorf("branch %s failed: %s", failures[0].NodeID, failures[0].Error)
	}

	if len(successes) == 0 {
		return nil, errors.New("no branch produced a result")
	}

	aggregated := n.aggregate(successes)

	ec.Variables.Set(variables.ScopeExecution, "joinedResults", aggregated)

	return map[string]models.NodeResult{
		models.PortMain: {
			NodeID: n.id,
			Data: map[string]any{
				"joinedResults": aggregated,
				"branchCount":   len(branches),
				"failedCount":   len(failures),
				"aggregation":   n.cfg.ResultAggregation,
			},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

func (n *JoinNode) aggregate(successes []models.NodeResult) any {
	switch n.cfg.ResultAggregation {
	case AggregateArray:
		out := make([]any, 0, len(successes))
		for _, branch := range successes {
			out = append(out, branch.Data)
		}

		return out
	case AggregateFirst:
		return successes[0].Data
	case AggregateLast:
		return successes[len(successes)-1].Data
	default: // merge, later branches overwrite earlier keys
		merged := map[string]any{}
		for _, branch := range successes {
			for k, v := range branch.Data {
				merged[k] = v
			}
		}

		return merged
	}
}

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
