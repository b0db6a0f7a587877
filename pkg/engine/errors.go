package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTriggerFound means the workflow has no node without incoming
	// connections, so there is nothing to start from.
	ErrNoTriggerFound = errors.New("no trigger node found")

	// ErrAmbiguousTrigger means more than one node has no incoming
	// connection.
	ErrAmbiguousTrigger = errors.New("multiple trigger nodes found")

	// ErrExecutionNotWaiting is returned by Resume when the execution is
	// not paused on a HITL gate.
	ErrExecutionNotWaiting = errors.New("execution is not waiting for human input")

	// ErrHITLTimeout marks a run failed because an approval expired with
	// timeout_action=fail.
	ErrHITLTimeout = errors.New("human approval timed out")

	// ErrJoinTimeout marks a join whose branches did not arrive in time.
	ErrJoinTimeout = errors.New("join timed out waiting for branches")

	// ErrExecutionCancelled stops traversal between nodes.
	ErrExecutionCancelled = errors.New("execution cancelled")
)

// ConfigurationError means the workflow definition itself is invalid; no
// node executions are created for such runs.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return "invalid workflow configuration: " + e.Reason + ": " + e.Err.Error()
	}

	return "invalid workflow configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(reason string, err error) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Err: err}
}

// NodeHandlerError wraps a node handler failure with the node's identity,
// so failure policies and the error log can attribute it.
type NodeHandlerError struct {
	NodeID   string
	NodeKind string
	Err      error
}

func (e *NodeHandlerError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.NodeKind, e.Err)
}

func (e *NodeHandlerError) Unwrap() error {
	return e.Err
}
