package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dealflow/dealflow/pkg/eventbus"
	"github.com/dealflow/dealflow/pkg/events"
	"github.com/dealflow/dealflow/pkg/models"
)

// Listener observes execution progress. Callbacks run synchronously on the
// walker goroutine after each node and at every status transition, so
// implementations must return quickly.
type Listener interface {
	NodeFinished(ctx context.Context, execution *models.WorkflowExecution, entry *models.NodeExecution)
	StatusChanged(ctx context.Context, execution *models.WorkflowExecution)
}

// BusNotifier forwards execution progress to the event bus.
type BusNotifier struct {
	publisher eventbus.EventPublisher
}

// NewBusNotifier creates a listener publishing lifecycle events.
func NewBusNotifier(publisher eventbus.EventPublisher) *BusNotifier {
	return &BusNotifier{publisher: publisher}
}

func (n *BusNotifier) base(eventType events.EventType, execution *models.WorkflowExecution) events.BaseEvent {
	return events.BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
	}
}

func (n *BusNotifier) NodeFinished(ctx context.Context, execution *models.WorkflowExecution, entry *models.NodeExecution) {
	var event eventbus.Event

	if entry.Status == models.NodeStatusFailed {
		event = events.NodeFailed{
			BaseEvent: n.base(events.NodeFailedEvent, execution),
			NodeID:    entry.NodeID,
			NodeKind:  entry.NodeKind,
			Error:     entry.Error,
		}
	} else {
		event = events.NodeCompleted{
			BaseEvent:   n.base(events.NodeCompletedEvent, execution),
			NodeID:      entry.NodeID,
			NodeKind:    entry.NodeKind,
			OutputPorts: entry.OutputPorts,
		}
	}

	_ = n.publisher.Publish(ctx, execution.ID, event)
}

func (n *BusNotifier) StatusChanged(ctx context.Context, execution *models.WorkflowExecution) {
	var event eventbus.Event

	switch execution.Status {
	case models.ExecutionStatusRunning:
		event = events.ExecutionStarted{
			BaseEvent:   n.base(events.ExecutionStartedEvent, execution),
			TriggeredBy: execution.TriggeredBy,
			TriggerData: execution.TriggerData,
			IsTestMode:  execution.IsTestMode,
		}
	case models.ExecutionStatusCompleted:
		var duration time.Duration
		if execution.CompletedAt != nil {
			duration = execution.CompletedAt.Sub(execution.StartedAt)
		}

		event = events.ExecutionCompleted{
			BaseEvent:   n.base(events.ExecutionCompletedEvent, execution),
			FinalOutput: execution.FinalOutput,
			Duration:    duration,
		}
	case models.ExecutionStatusFailed:
		failed := events.ExecutionFailed{
			BaseEvent: n.base(events.ExecutionFailedEvent, execution),
		}
		if len(execution.Errors) > 0 {
			last := execution.Errors[len(execution.Errors)-1]
			failed.NodeID = last.NodeID
			failed.Error = last.Error
		}

		event = failed
	case models.ExecutionStatusCancelled:
		event = events.ExecutionCancelled{
			BaseEvent: n.base(events.ExecutionCancelledEvent, execution),
		}
	case models.ExecutionStatusWaitingHITL:
		event = events.ExecutionPaused{
			BaseEvent: n.base(events.ExecutionPausedEvent, execution),
			NodeID:    execution.CurrentNodeID,
		}
	default:
		return
	}

	_ = n.publisher.Publish(ctx, execution.ID, event)
}
