// Package events defines the lifecycle events emitted while executions run.
package events

import (
	"time"
)

type EventType string

// Topic carries every execution lifecycle event.
const Topic = "dealflow.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"

	NodeStartedEvent   EventType = "node.started"
	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"

	HITLRequestedEvent EventType = "hitl.requested"
	HITLAnsweredEvent  EventType = "hitl.answered"
	HITLExpiredEvent   EventType = "hitl.expired"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	TriggeredBy string         `json:"triggered_by"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	IsTestMode  bool           `json:"is_test_mode"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	FinalOutput map[string]any `json:"final_output,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	NodeID string `json:"node_id,omitempty"`
	Error  string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type ExecutionPaused struct {
	BaseEvent

	NodeID        string `json:"node_id"`
	HITLRequestID string `json:"hitl_request_id"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	NodeID        string `json:"node_id"`
	HITLRequestID string `json:"hitl_request_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type NodeStarted struct {
	BaseEvent

	NodeID   string `json:"node_id"`
	NodeKind string `json:"node_kind"`
}

func (e NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

type NodeCompleted struct {
	BaseEvent

	NodeID      string   `json:"node_id"`
	NodeKind    string   `json:"node_kind"`
	OutputPorts []string `json:"output_ports,omitempty"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	NodeID   string `json:"node_id"`
	NodeKind string `json:"node_kind"`
	Error    string `json:"error"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type HITLRequested struct {
	BaseEvent

	RequestID string     `json:"request_id"`
	NodeID    string     `json:"node_id"`
	Prompt    string     `json:"prompt"`
	Channels  []string   `json:"channels,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (e HITLRequested) GetType() EventType {
	return HITLRequestedEvent
}

type HITLAnswered struct {
	BaseEvent

	RequestID string `json:"request_id"`
	NodeID    string `json:"node_id"`
}

func (e HITLAnswered) GetType() EventType {
	return HITLAnsweredEvent
}

type HITLExpired struct {
	BaseEvent

	RequestID     string `json:"request_id"`
	NodeID        string `json:"node_id"`
	TimeoutAction string `json:"timeout_action"`
}

func (e HITLExpired) GetType() EventType {
	return HITLExpiredEvent
}
