// Package models defines the core domain models for node-based workflow automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft       WorkflowStatus = "draft"       // Editable, not executable
	WorkflowStatusPublished   WorkflowStatus = "published"   // Current active, executable
	WorkflowStatusUnpublished WorkflowStatus = "unpublished" // Historical, not executable
)

// Workflow represents a node-based automation owned by a CRM tenant.
type Workflow struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Status      WorkflowStatus  `json:"status"      validate:"required"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Connections []*Connection   `json:"connections"`
	Variables   map[string]any  `json:"variables"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Owner       string          `json:"owner"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// NodeByID returns the node with the given ID, or nil.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// IncomingConnections returns all connections targeting the given node.
func (w *Workflow) IncomingConnections(nodeID string) []*Connection {
	var incoming []*Connection

	for _, conn := range w.Connections {
		if conn.TargetNode() == nodeID {
			incoming = append(incoming, conn)
		}
	}

	return incoming
}

// OutgoingConnections returns all connections leaving the given node.
func (w *Workflow) OutgoingConnections(nodeID string) []*Connection {
	var outgoing []*Connection

	for _, conn := range w.Connections {
		if conn.SourceNode() == nodeID {
			outgoing = append(outgoing, conn)
		}
	}

	return outgoing
}

// TriggerNodes returns every node with no incoming connection.
func (w *Workflow) TriggerNodes() []*WorkflowNode {
	incoming := make(map[string]bool, len(w.Nodes))
	for _, conn := range w.Connections {
		incoming[conn.TargetNode()] = true
	}

	var triggers []*WorkflowNode

	for _, node := range w.Nodes {
		if !incoming[node.ID] {
			triggers = append(triggers, node)
		}
	}

	return triggers
}
