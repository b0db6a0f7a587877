package action

import (
	"context"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
)

// ActionNodeFactory creates ActionNode instances sharing one set of
// collaborators.
type ActionNodeFactory struct {
	deps Collaborators
}

// NewActionNodeFactory creates a factory bound to the given collaborators.
func NewActionNodeFactory(deps Collaborators) protocol.NodeFactory {
	return &ActionNodeFactory{deps: deps}
}

func (f *ActionNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewActionNode(id, config, f.deps)
}

func (f *ActionNodeFactory) Kind() string {
	return models.NodeKindAction
}

func (f *ActionNodeFactory) Name() string {
	return "CRM Action"
}

func (f *ActionNodeFactory) Description() string {
	return "Executes one CRM side effect: create a task, send an email or notification, edit record fields, or book and cancel meetings."
}

func (f *ActionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action_type": map[string]any{
				"type": "string",
				"enum": []string{
					models.ActionTypeCreateTask,
					models.ActionTypeSendEmail,
					models.ActionTypeSendNotification,
					models.ActionTypeEditFields,
					models.ActionTypeBookMeeting,
					models.ActionTypeCancelMeeting,
				},
			},
			"title":            map[string]any{"type": "string", "description": "Task or meeting title (create-task, meeting-book)."},
			"description":      map[string]any{"type": "string"},
			"due_date":         map[string]any{"type": "string"},
			"priority":         map[string]any{"type": "string"},
			"assignee":         map[string]any{"type": "string", "description": "Defaults to the acting user."},
			"related_to":       map[string]any{"type": "string", "description": "Related record reference (deal, contact)."},
			"to":               map[string]any{"type": "string", "description": "Email recipient (send-email)."},
			"subject":          map[string]any{"type": "string"},
			"body":             map[string]any{"type": "string"},
			"message":          map[string]any{"type": "string", "description": "Notification body (send-notification)."},
			"channel":          map[string]any{"type": "string", "description": "Notification channel, defaults to in-app."},
			"recipient":        map[string]any{"type": "string"},
			"attendee":         map[string]any{"type": "string", "description": "Meeting attendee (meeting-book)."},
			"organizer":        map[string]any{"type": "string", "description": "Defaults to the acting user."},
			"starts_at":        map[string]any{"type": "string"},
			"duration_minutes": map[string]any{"type": "number"},
			"location":         map[string]any{"type": "string"},
			"meeting_id":       map[string]any{"type": "string", "description": "Meeting record to cancel (meeting-cancel)."},
			"entity":           map[string]any{"type": "string", "description": "Record entity (edit-fields)."},
			"record_id":        map[string]any{"type": "string"},
			"fields":           map[string]any{"type": "object", "description": "Field values to write (edit-fields)."},
			"simulation": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"mockOutput": map[string]any{"type": "object"},
				},
			},
		},
		"required": []string{"action_type"},
	}
}
