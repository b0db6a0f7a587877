// Package action implements the CRM side-effect node. The action kind is
// sub-typed through the "action_type" config key: create-task, send-email,
// send-notification, edit-fields and the meeting-* family all share one
// node that dispatches to the matching handler.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
	"github.com/dealflow/dealflow/pkg/providers"
)

// Collaborators are the external systems action handlers reach.
type Collaborators struct {
	Records    providers.RecordStore
	Dispatcher providers.Dispatcher
	Identity   providers.Identity
}

// ActionNode executes one CRM side effect per run.
type ActionNode struct {
	id         string
	actionType string
	config     map[string]any
	mockOutput map[string]any
	deps       Collaborators
}

// NewActionNode creates an action node. The remaining config keys are
// interpreted per action type at execution time, after interpolation.
func NewActionNode(id string, config map[string]any, deps Collaborators) (*ActionNode, error) {
	actionType, ok := config["action_type"].(string)
	if !ok || actionType == "" {
		return nil, errors.New("missing required field 'action_type'")
	}

	switch actionType {
	case models.ActionTypeCreateTask, models.ActionTypeSendEmail,
		models.ActionTypeSendNotification, models.ActionTypeEditFields,
		models.ActionTypeBookMeeting, models.ActionTypeCancelMeeting:
	default:
		return nil, fmt.Errorf("unknown action_type %q", actionType)
	}

	var mockOutput map[string]any
	if sim, ok := config["simulation"].(map[string]any); ok {
		mockOutput, _ = sim["mockOutput"].(map[string]any)
	}

	return &ActionNode{
		id:         id,
		actionType: actionType,
		config:     config,
		mockOutput: mockOutput,
		deps:       deps,
	}, nil
}

func (n *ActionNode) ID() string {
	return n.id
}

func (n *ActionNode) Kind() string {
	return models.NodeKindAction
}

// Execute interpolates the config and runs the side effect. Test-mode runs
// never touch the record store or dispatcher: they return the configured
// mock output, or a synthetic success describing what would have happened.
func (n *ActionNode) Execute(ctx context.Context, ec protocol.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	cfg := ec.Resolver.InterpolateMap(n.config)

	if ec.TestMode {
		data := n.mockOutput
		if data == nil {
			data = map[string]any{"success": true, "simulated": true, "action_type": n.actionType}
		}

		return n.result(data), nil
	}

	var (
		data map[string]any
		err  error
	)

	switch n.actionType {
	case models.ActionTypeCreateTask:
		data, err = n.createTask(ctx, cfg)
	case models.ActionTypeSendEmail:
		data, err = n.sendEmail(ctx, cfg)
	case models.ActionTypeSendNotification:
		data, err = n.sendNotification(ctx, cfg)
	case models.ActionTypeEditFields:
		data, err = n.editFields(ctx, cfg)
	case models.ActionTypeBookMeeting:
		data, err = n.bookMeeting(ctx, cfg)
	case models.ActionTypeCancelMeeting:
		data, err = n.cancelMeeting(ctx, cfg)
	}

	if err != nil {
		return nil, err
	}

	return n.result(data), nil
}

func (n *ActionNode) result(data map[string]any) map[string]models.NodeResult {
	return map[string]models.NodeResult{
		models.PortMain: {
			NodeID:    n.id,
			Data:      data,
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}
}

func (n *ActionNode) createTask(ctx context.Context, cfg map[string]any) (map[string]any, error) {
	title, _ := cfg["title"].(string)
	if title == "" {
		return nil, errors.New("create-task requires 'title'")
	}

	fields := map[string]any{
		"title":       title,
		"description": cfg["description"],
		"due_date":    cfg["due_date"],
		"priority":    cfg["priority"],
		"related_to":  cfg["related_to"],
	}

	assignee, _ := cfg["assignee"].(string)
	if assignee == "" && n.deps.Identity != nil {
		userID, err := n.deps.Identity.CurrentUserID(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving assignee: %w", err)
		}

		assignee = userID
	}

	fields["assignee"] = assignee

	taskID, err := n.deps.Records.CreateRecord(ctx, "task", fields)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	return map[string]any{"success": true, "task_id": taskID, "assignee": assignee}, nil
}

func (n *ActionNode) sendEmail(ctx context.Context, cfg map[string]any) (map[string]any, error) {
	recipient, _ := cfg["to"].(string)
	if recipient == "" {
		return nil, errors.New("send-email requires 'to'")
	}

	subject, _ := cfg["subject"].(string)
	body, _ := cfg["body"].(string)

	err := n.deps.Dispatcher.Dispatch(ctx, providers.Notification{
		Channel:   "email",
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		return nil, fmt.Errorf("sending email: %w", err)
	}

	return map[string]any{"success": true, "recipient": recipient, "subject": subject}, nil
}

func (n *ActionNode) sendNotification(ctx context.Context, cfg map[string]any) (map[string]any, error) {
	message, _ := cfg["message"].(string)
	if message == "" {
		return nil, errors.New("send-notification requires 'message'")
	}

	channel, _ := cfg["channel"].(string)
	if channel == "" {
		channel = "in-app"
	}

	recipient, _ := cfg["recipient"].(string)
	if recipient == "" && n.deps.Identity != nil {
		userID, err := n.deps.Identity.CurrentUserID(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving recipient: %w", err)
		}

		recipient = userID
	}

	err := n.deps.Dispatcher.Dispatch(ctx, providers.Notification{
		Channel:   channel,
		Recipient: recipient,
		Body:      message,
	})
	if err != nil {
		return nil, fmt.Errorf("sending notification: %w", err)
	}

	return map[string]any{"success": true, "channel": channel, "recipient": recipient}, nil
}

func (n *ActionNode) bookMeeting(ctx context.Context, cfg map[string]any) (map[string]any, error) {
	title, _ := cfg["title"].(string)
	attendee, _ := cfg["attendee"].(string)

	if title == "" || attendee == "" {
		return nil, errors.New("meeting-book requires 'title' and 'attendee'")
	}

	organizer, _ := cfg["organizer"].(string)
	if organizer == "" && n.deps.Identity != nil {
		userID, err := n.deps.Identity.CurrentUserID(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving organizer: %w", err)
		}

		organizer = userID
	}

	fields := map[string]any{
		"title":      title,
		"attendee":   attendee,
		"organizer":  organizer,
		"starts_at":  cfg["starts_at"],
		"location":   cfg["location"],
		"related_to": cfg["related_to"],
		"status":     "scheduled",
	}

	if minutes, ok := cfg["duration_minutes"].(float64); ok {
		fields["duration_minutes"] = minutes
	}

	meetingID, err := n.deps.Records.CreateRecord(ctx, "meeting", fields)
	if err != nil {
		return nil, fmt.Errorf("booking meeting: %w", err)
	}

	err = n.deps.Dispatcher.Dispatch(ctx, providers.Notification{
		Channel:   "calendar",
		Recipient: attendee,
		Subject:   title,
		Body:      fmt.Sprintf("%s invited you to %q", organizer, title),
	})
	if err != nil {
		return nil, fmt.Errorf("sending meeting invite: %w", err)
	}

	return map[string]any{"success": true, "meeting_id": meetingID, "attendee": attendee, "organizer": organizer}, nil
}

func (n *ActionNode) cancelMeeting(ctx context.Context, cfg map[string]any) (map[string]any, error) {
	meetingID, _ := cfg["meeting_id"].(string)
	if meetingID == "" {
		return nil, errors.New("meeting-cancel requires 'meeting_id'")
	}

	meeting, err := n.deps.Records.GetRecord(ctx, "meeting", meetingID)
	if err != nil {
		return nil, fmt.Errorf("loading meeting %s: %w", meetingID, err)
	}

	if meeting == nil {
		return nil, fmt.Errorf("meeting %s not found", meetingID)
	}

	if err := n.deps.Records.SetRecordFields(ctx, "meeting", meetingID, map[string]any{"status": "cancelled"}); err != nil {
		return nil, fmt.Errorf("cancelling meeting %s: %w", meetingID, err)
	}

	if attendee, ok := meeting["attendee"].(string); ok && attendee != "" {
		title, _ := meeting["title"].(string)

		err := n.deps.Dispatcher.Dispatch(ctx, providers.Notification{
			Channel:   "calendar",
			Recipient: attendee,
			Subject:   title,
			Body:      fmt.Sprintf("Meeting %q was cancelled", title),
		})
		if err != nil {
			return nil, fmt.Errorf("sending cancellation notice: %w", err)
		}
	}

	return map[string]any{"success": true, "meeting_id": meetingID, "status": "cancelled"}, nil
}

func (n *ActionNode) editFields(ctx context.Context, cfg map[string]any) (map[string]any, error) {
	entity, _ := cfg["entity"].(string)
	recordID, _ := cfg["record_id"].(string)

	if entity == "" || recordID == "" {
		return nil, errors.New("edit-fields requires 'entity' and 'record_id'")
	}

	fields, ok := cfg["fields"].(map[string]any)
	if !ok || len(fields) == 0 {
		return nil, errors.New("edit-fields requires a non-empty 'fields' object")
	}

	if err := n.deps.Records.SetRecordFields(ctx, entity, recordID, fields); err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", entity, recordID, err)
	}

	updated := make([]string, 0, len(fields))
	for name := range fields {
		updated = append(updated, name)
	}

	return map[string]any{"success": true, "entity": entity, "record_id": recordID, "updated_fields": updated}, nil
}
