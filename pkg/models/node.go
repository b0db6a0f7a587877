// Package models defines core node-based workflow models for graph execution.
package models

import (
	"time"
)

// Node kinds understood by the engine. Action nodes are further sub-typed
// through their configuration ("action_type").
const (
	NodeKindTrigger          = "trigger"
	NodeKindForm             = "form"
	NodeKindAICompletion     = "ai-completion"
	NodeKindCustomAssistant  = "custom-assistant"
	NodeKindAssistantManager = "assistant-manager"
	NodeKindAction           = "action"
	NodeKindCondition        = "condition"
	NodeKindRouter           = "router"
	NodeKindSplitter         = "multi-action-splitter"
	NodeKindJoin             = "join"
)

// Action sub-types carried in the "action_type" config key.
const (
	ActionTypeCreateTask       = "create-task"
	ActionTypeSendEmail        = "send-email"
	ActionTypeSendNotification = "send-notification"
	ActionTypeEditFields       = "edit-fields"
	ActionTypeBookMeeting      = "meeting-book"
	ActionTypeCancelMeeting    = "meeting-cancel"
)

// FailurePolicy controls traversal after a node handler fails.
type FailurePolicy string

const (
	FailurePolicyStop     FailurePolicy = "stop"
	FailurePolicyContinue FailurePolicy = "continue"
)

// HITLMode says whether the approval gate fires before or after the node runs.
type HITLMode string

const (
	HITLModeBefore HITLMode = "before"
	HITLModeAfter  HITLMode = "after"
)

// HITLConfig attaches a human-in-the-loop gate to a node.
type HITLConfig struct {
	Enabled          bool           `json:"enabled"`
	Mode             HITLMode       `json:"mode"                        validate:"omitempty,oneof=before after"`
	Prompt           string         `json:"prompt"`
	Options          []string       `json:"options,omitempty"`
	Channels         []string       `json:"channels,omitempty"`
	TimeoutMinutes   int            `json:"timeout_minutes,omitempty"`
	TimeoutAction    string         `json:"timeout_action,omitempty"    validate:"omitempty,oneof=continue_default fail"`
	DefaultValue     any            `json:"default_value,omitempty"`
	SkipInSimulation bool           `json:"skip_in_simulation,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// HITL timeout actions.
const (
	HITLTimeoutContinueDefault = "continue_default"
	HITLTimeoutFail            = "fail"
)

// WorkflowNode represents a node instance in a workflow.
type WorkflowNode struct {
	ID        string         `json:"id"         validate:"required"`
	Kind      string         `json:"kind"       validate:"required"`
	Name      string         `json:"name"       validate:"required,min=1"`
	Config    map[string]any `json:"config"`
	Enabled   bool           `json:"enabled"`
	OnFailure FailurePolicy  `json:"on_failure,omitempty" validate:"omitempty,oneof=stop continue"`
	HITL      *HITLConfig    `json:"hitl,omitempty"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
}

// FailurePolicyOrDefault returns the node's failure policy, defaulting to stop.
func (n *WorkflowNode) FailurePolicyOrDefault() FailurePolicy {
	if n.OnFailure == FailurePolicyContinue {
		return FailurePolicyContinue
	}

	return FailurePolicyStop
}

// IsTriggerNode reports whether this node can start an execution.
func (n *WorkflowNode) IsTriggerNode() bool {
	return n.Kind == NodeKindTrigger || n.Kind == NodeKindForm
}

// NodeResult represents the data a node emitted on one output port.
type NodeResult struct {
	NodeID    string         `json:"node_id"`
	Data      map[string]any `json:"data"`
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
}

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "completed"
	NodeStatusFailed  NodeStatus = "failed"
	NodeStatusSkipped NodeStatus = "skipped"
)
