// Package protocol defines the interfaces and contracts for pluggable nodes.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/variables"
)

// ExecutionContext is the per-run state handed to node handlers. It is
// owned exclusively by one graph walk; handlers must not retain it.
type ExecutionContext struct {
	ExecutionID string
	WorkflowID  string
	TriggeredBy string
	TestMode    bool
	Variables   *variables.Context
	Resolver    *variables.Resolver
	Logger      *slog.Logger
}

// Node is one executable step of a workflow graph. Execute receives the
// results delivered to its input ports and returns results keyed by output
// port name; the walker only follows connections whose source port is
// present in the returned map.
type Node interface {
	// ID returns the node instance ID
	ID() string

	// Kind returns the node kind (trigger, condition, action, ...)
	Kind() string

	// Execute runs the node against the current execution context
	Execute(ctx context.Context, ec ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error)
}

// NodeFactory creates node instances and provides metadata about the node kind.
type NodeFactory interface {
	// Create creates a new node instance with the given configuration
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// Kind returns the unique identifier for this node kind
	Kind() string

	// Name returns the human-readable name for this node kind
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node kind
	Schema() map[string]any
}
