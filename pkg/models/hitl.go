package models

import "time"

// HITLStatus represents the lifecycle of a human approval request.
type HITLStatus string

const (
	HITLStatusPending  HITLStatus = "pending"
	HITLStatusAnswered HITLStatus = "answered"
	HITLStatusExpired  HITLStatus = "expired"
)

// HITLRequest is a pending human approval created by a gate. Consumed
// exactly once by the resume entry point.
type HITLRequest struct {
	ID             string         `json:"id"`
	ExecutionID    string         `json:"execution_id"`
	NodeID         string         `json:"node_id"`
	Mode           HITLMode       `json:"mode"`
	StepIndex      int            `json:"step_index"`
	Prompt         string         `json:"prompt"`
	Options        []string       `json:"options,omitempty"`
	Channels       []string       `json:"channels,omitempty"`
	TimeoutMinutes int            `json:"timeout_minutes"`
	TimeoutAction  string         `json:"timeout_action"`
	DefaultValue   any            `json:"default_value,omitempty"`
	Status         HITLStatus     `json:"status"`
	Response       any            `json:"response,omitempty"`
	ResponseCtx    map[string]any `json:"response_context,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	AnsweredAt     *time.Time     `json:"answered_at,omitempty"`
}

// Expired reports whether the request's deadline has passed at the given time.
func (r *HITLRequest) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
