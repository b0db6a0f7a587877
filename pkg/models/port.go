// Package models defines port-based workflow models for node connections.
package models

// Well-known port names shared by several node kinds.
const (
	PortMain    = "main"
	PortTrue    = "true"
	PortFalse   = "false"
	PortError   = "error"
	PortDefault = "default"
)

// Connection connects a source node's output port to a target node's input
// port. Port IDs are fully qualified: "{node_id}:{port_name}".
type Connection struct {
	ID         string `json:"id"`
	SourcePort string `json:"source_port" validate:"required"`
	TargetPort string `json:"target_port" validate:"required"`
}

// SourceNode returns the node ID half of the source port.
func (c *Connection) SourceNode() string {
	nodeID, _, _ := ParsePortID(c.SourcePort)

	return nodeID
}

// TargetNode returns the node ID half of the target port.
func (c *Connection) TargetNode() string {
	nodeID, _, _ := ParsePortID(c.TargetPort)

	return nodeID
}

// ParsePortID parses a port ID in format "{node_id}:{port_name}" into components.
func ParsePortID(portID string) (string, string, bool) {
	for i := range len(portID) {
		if portID[i] == ':' {
			return portID[:i], portID[i+1:], true
		}
	}

	return "", "", false
}

// MakePortID creates a port ID from node ID and port name.
func MakePortID(nodeID, portName string) string {
	return nodeID + ":" + portName
}
