// Package form provides the form node: a trigger variant that validates
// submitted form fields and exposes them to the rest of the graph.
package form

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
	"github.com/dealflow/dealflow/pkg/variables"
)

const (
	OutputPortMain  = models.PortMain
	OutputPortError = models.PortError
)

// FieldSpec describes one form field.
type FieldSpec struct {
	Name     string
	Required bool
	Default  any
}

// FormNode validates a form submission against its declared fields.
type FormNode struct {
	id     string
	fields []FieldSpec
}

// NewFormNode creates a form node from its config.
func NewFormNode(id string, config map[string]any) (*FormNode, error) {
	fieldsAny, ok := config["fields"].([]any)
	if !ok {
		return nil, errors.New("missing required field 'fields'")
	}

	fields := make([]FieldSpec, 0, len(fieldsAny))

	for i, raw := range fieldsAny {
		spec, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %d must be an object", i)
		}

		name, ok := spec["name"].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("field %d missing 'name'", i)
		}

		required, _ := spec["required"].(bool)
		fields = append(fields, FieldSpec{
			Name:     name,
			Required: required,
			Default:  spec["default"],
		})
	}

	return &FormNode{id: id, fields: fields}, nil
}

func (n *FormNode) ID() string {
	return n.id
}

func (n *FormNode) Kind() string {
	return models.NodeKindForm
}

// Execute reads the submitted values from the execution scope (seeded from
// trigger data under "formData"), applies defaults and checks required
// fields. Validation failures surface on the error port rather than
// failing the run.
func (n *FormNode) Execute(_ context.Context, ec protocol.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	submitted := map[string]any{}
	if raw, ok := ec.Variables.Get(variables.ScopeExecution, "formData"); ok {
		if m, ok := raw.(map[string]any); ok {
			submitted = m
		}
	}

	values := make(map[string]any, len(n.fields))

	var missing []string

	for _, field := range n.fields {
		value, ok := submitted[field.Name]
		if !ok || value == nil {
			if field.Default != nil {
				values[field.Name] = field.Default

				continue
			}

			if field.Required {
				missing = append(missing, field.Name)
			}

			continue
		}

		values[field.Name] = value
	}

	if len(missing) > 0 {
		return map[string]models.NodeResult{
			OutputPortError: {
				NodeID:    n.id,
				Data:      map[string]any{"error": fmt.Sprintf("missing required fields: %v", missing), "success": false},
				Status:    string(models.NodeStatusFailed),
				Timestamp: time.Now().UTC(),
			},
		}, nil
	}

	// Make the validated values reachable as ${execution.formData.*}.
	ec.Variables.Set(variables.ScopeExecution, "formData", values)

	return map[string]models.NodeResult{
		OutputPortMain: {
			NodeID:    n.id,
			Data:      map[string]any{"formData": values},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}
