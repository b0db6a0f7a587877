package models

import "time"

// ExecutionStatus represents the lifecycle state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning     ExecutionStatus = "running"
	ExecutionStatusCompleted   ExecutionStatus = "completed"
	ExecutionStatusFailed      ExecutionStatus = "failed"
	ExecutionStatusCancelled   ExecutionStatus = "cancelled"
	ExecutionStatusWaitingHITL ExecutionStatus = "waiting_hitl"
)

// IsTerminal reports whether the status ends the run for good.
// waiting_hitl is durable but resumable, so it is not terminal.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// NodeExecution is one entry in the execution log. Never mutated after
// CompletedAt is set.
type NodeExecution struct {
	NodeID      string         `json:"node_id"`
	NodeKind    string         `json:"node_kind"`
	Status      NodeStatus     `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	OutputPorts []string       `json:"output_ports,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// ExecutionError records one node failure inside a run.
type ExecutionError struct {
	NodeID    string    `json:"node_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowExecution is the durable, observable unit of work: one run of one
// workflow, with its per-node log and final output.
type WorkflowExecution struct {
	ID             string           `json:"id"`
	WorkflowID     string           `json:"workflow_id"`
	WorkflowName   string           `json:"workflow_name"`
	TriggeredBy    string           `json:"triggered_by"`
	TriggerData    map[string]any   `json:"trigger_data,omitempty"`
	Status         ExecutionStatus  `json:"status"`
	CurrentNodeID  string           `json:"current_node_id,omitempty"`
	NodeExecutions []*NodeExecution `json:"node_executions"`
	Errors         []ExecutionError `json:"errors,omitempty"`
	FinalOutput    map[string]any   `json:"final_output,omitempty"`
	IsTestMode     bool             `json:"is_test_mode"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// NodeExecutionFor returns the log entry for the given node, or nil.
func (e *WorkflowExecution) NodeExecutionFor(nodeID string) *NodeExecution {
	for _, ne := range e.NodeExecutions {
		if ne.NodeID == nodeID {
			return ne
		}
	}

	return nil
}

// RecordError appends a node failure to the run's error log.
func (e *WorkflowExecution) RecordError(nodeID string, err error) {
	e.Errors = append(e.Errors, ExecutionError{
		NodeID:    nodeID,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	})
}
