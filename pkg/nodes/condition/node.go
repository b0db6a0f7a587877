// Package condition provides boolean branching for workflow graphs. The
// expression is compiled to an AST and evaluated against the variable
// context snapshot; there is no dynamic code execution.
package condition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/expr-lang/expr"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
)

const (
	OutputPortTrue  = models.PortTrue
	OutputPortFalse = models.PortFalse
	OutputPortError = models.PortError
)

// ConditionNode evaluates a boolean expression and routes to the true or
// false output port. It never branches traversal itself; the walker only
// follows connections whose source port carries a result.
type ConditionNode struct {
	id         string
	expression string
}

// NewConditionNode creates a condition node.
func NewConditionNode(id string, config map[string]any) (*ConditionNode, error) {
	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return nil, errors.New("missing required field 'expression'")
	}

	return &ConditionNode{id: id, expression: expression}, nil
}

func (n *ConditionNode) ID() string {
	return n.id
}

func (n *ConditionNode) Kind() string {
	return models.NodeKindCondition
}

// Execute compiles and runs the expression. Variables appear under their
// scope names (execution.deal.stage, workflow.threshold, ...) plus
// nodeOutputs and system.
func (n *ConditionNode) Execute(_ context.Context, ec protocol.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	env := ec.Variables.Snapshot()

	// ${...} references are resolved before compilation so conditions can
	// mix both styles.
	source := ec.Resolver.Interpolate(n.expression)

	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return n.errorResult(fmt.Sprintf("condition compile failed: %v", err)), nil
	}

	raw, err := expr.Run(program, env)
	if err != nil {
		return n.errorResult(fmt.Sprintf("condition evaluation failed: %v", err)), nil
	}

	result := truthy(raw)

	port := OutputPortFalse
	if result {
		port = OutputPortTrue
	}

	return map[string]models.NodeResult{
		port: {
			NodeID: n.id,
			Data: map[string]any{
				"result":          result,
				"evaluated_value": raw,
			},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

func (n *ConditionNode) errorResult(message string) map[string]models.NodeResult {
	return map[string]models.NodeResult{
		OutputPortError: {
			NodeID:    n.id,
			Data:      map[string]any{"error": message, "success": false},
			Status:    string(models.NodeStatusFailed),
			Timestamp: time.Now().UTC(),
		},
	}
}

// truthy converts evaluation results to booleans the way condition
// configs expect: nil, zero, empty string and empty collections are false.
func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case nil:
		return false
	default:
		return false
	}
}
