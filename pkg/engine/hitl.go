package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dealflow/dealflow/pkg/eventbus"
	"github.com/dealflow/dealflow/pkg/events"
	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/variables"
)

// HITLListener is an optional Listener extension for approval lifecycle
// changes.
type HITLListener interface {
	HITLChanged(ctx context.Context, execution *models.WorkflowExecution, request *models.HITLRequest)
}

// gateFires reports whether a node's approval gate should pause the run at
// the given point. Gates already answered through Resume stay quiet, and
// simulation runs skip gates marked skip_in_simulation.
func (e *Engine) gateFires(state *walkState, node *models.WorkflowNode, mode models.HITLMode) bool {
	cfg := node.HITL
	if cfg == nil || !cfg.Enabled {
		return false
	}

	gateMode := cfg.Mode
	if gateMode == "" {
		gateMode = models.HITLModeBefore
	}

	if gateMode != mode {
		return false
	}

	if state.testMode && cfg.SkipInSimulation {
		return false
	}

	return !state.satisfiedGates[node.ID]
}

// pauseForHITL creates the approval request, marks the run waiting_hitl
// and persists it. Traversal does not continue in this call; Resume (or
// the expiry sweeper) picks the run back up.
func (e *Engine) pauseForHITL(ctx context.Context, state *walkState, node *models.WorkflowNode, mode models.HITLMode) {
	cfg := node.HITL
	now := time.Now().UTC()

	request := &models.HITLRequest{
		ID:             uuid.New().String(),
		ExecutionID:    state.execution.ID,
		NodeID:         node.ID,
		Mode:           mode,
		StepIndex:      len(state.execution.NodeExecutions),
		Prompt:         state.resolver.Interpolate(cfg.Prompt),
		Options:        cfg.Options,
		Channels:       cfg.Channels,
		TimeoutMinutes: cfg.TimeoutMinutes,
		TimeoutAction:  cfg.TimeoutAction,
		DefaultValue:   cfg.DefaultValue,
		Status:         models.HITLStatusPending,
		CreatedAt:      now,
	}

	if request.TimeoutAction == "" {
		request.TimeoutAction = models.HITLTimeoutFail
	}

	if cfg.TimeoutMinutes > 0 {
		expires := now.Add(time.Duration(cfg.TimeoutMinutes) * time.Minute)
		request.ExpiresAt = &expires
	}

	if err := e.persistence.HITLRepository().Save(ctx, request); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist approval request",
			"execution_id", state.execution.ID, "node_id", node.ID, "error", err)
		state.execution.RecordError(node.ID, err)
		e.finish(ctx, state, models.ExecutionStatusFailed, nil)

		return
	}

	execution := state.execution
	execution.Status = models.ExecutionStatusWaitingHITL
	execution.CurrentNodeID = node.ID

	e.persistWorkflowScope(ctx, state)

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist paused execution",
			"execution_id", execution.ID, "error", err)
	}

	e.notifyStatus(ctx, execution)
	e.notifyHITL(ctx, execution, request)

	e.logger.InfoContext(ctx, "execution paused for approval",
		"execution_id", execution.ID,
		"node_id", node.ID,
		"mode", string(mode),
		"request_id", request.ID)
}

// Resume answers the pending approval for an execution and continues the
// graph walk from the paused node. Answering twice fails with
// ErrHITLAlreadyAnswered from the repository.
func (e *Engine) Resume(ctx context.Context, executionID string, response any, responseCtx map[string]any) (*models.WorkflowExecution, error) {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionStatusWaitingHITL {
		return nil, fmt.Errorf("%w: execution %s is %s", ErrExecutionNotWaiting, executionID, execution.Status)
	}

	request, err := e.persistence.HITLRepository().PendingByExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	answered, err := e.persistence.HITLRepository().Answer(ctx, request.ID, response, responseCtx)
	if err != nil {
		return nil, err
	}

	workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		return nil, err
	}

	e.notifyHITL(ctx, execution, answered)

	return e.resumeRun(ctx, workflow, execution, answered)
}

// resumeRun reconstructs the walk state from the persisted record and
// re-enters the walker with every traversal frontier restored, the
// paused node included.
func (e *Engine) resumeRun(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution, request *models.HITLRequest) (*models.WorkflowExecution, error) {
	vars, err := e.buildVariableContext(ctx, workflow)
	if err != nil {
		return nil, err
	}

	vars.SeedScope(variables.ScopeExecution, execution.TriggerData)
	vars.SeedScope(variables.ScopeExecution, request.ResponseCtx)
	vars.Set(variables.ScopeExecution, "hitlResponse", request.Response)

	state := newWalkState(workflow, execution, vars, execution.IsTestMode)
	state.satisfiedGates[request.NodeID] = true

	// Rebuild node outputs and the visited set from the execution log so
	// downstream expressions and diamond handling behave as if the
	// process never paused.
	for _, entry := range execution.NodeExecutions {
		if entry.CompletedAt == nil {
			continue
		}

		state.visited[entry.NodeID] = true

		if entry.Status != models.NodeStatusSuccess {
			continue
		}

		vars.SetNodeOutput(entry.NodeID, entry.Output)
		vars.Set(variables.ScopeWorkflow, "previousOutput", entry.Output)
		state.outputs[entry.NodeID] = rebuildPorts(entry)
	}

	// Re-route the children of every node already executed. Activations
	// that were still queued when the run paused, such as sibling branches
	// fanned out before the gated node was reached, come back this way;
	// finished work is dropped by the walker's visited check. For an after
	// gate this also re-enters the gated node's own children through its
	// recorded ports.
	for _, entry := range execution.NodeExecutions {
		if state.visited[entry.NodeID] {
			e.enqueueChildren(state, entry.NodeID, state.outputs[entry.NodeID])
		}
	}

	// A before gate means the gated node never ran. Seed it directly as
	// well, which covers gated trigger nodes with no parent; when a parent
	// re-routed it above, this bare activation is skipped as visited after
	// the first one executes.
	if request.Mode != models.HITLModeAfter {
		state.enqueue(activation{nodeID: request.NodeID})
	}

	execution.Status = models.ExecutionStatusRunning
	execution.CurrentNodeID = ""

	e.trackRun(execution.ID)
	defer e.untrackRun(execution.ID)

	e.walk(ctx, state)

	return execution, nil
}

// rebuildPorts reconstructs a node's per-port results from its log entry.
// The log keeps one output object; every recorded port carries it.
func rebuildPorts(entry *models.NodeExecution) map[string]models.NodeResult {
	ports := make(map[string]models.NodeResult, len(entry.OutputPorts))

	completedAt := entry.StartedAt
	if entry.CompletedAt != nil {
		completedAt = *entry.CompletedAt
	}

	for _, port := range entry.OutputPorts {
		ports[port] = models.NodeResult{
			NodeID:    entry.NodeID,
			Data:      entry.Output,
			Status:    string(entry.Status),
			Timestamp: completedAt,
		}
	}

	return ports
}

// SweepExpired expires overdue approval requests and applies each one's
// timeout action: continue_default resumes the run with the configured
// default value, fail marks it failed.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) {
	requests, err := e.persistence.HITLRepository().ListExpired(ctx, now)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to list expired approvals", "error", err)

		return
	}

	for _, request := range requests {
		e.expireOne(ctx, request)
	}
}

func (e *Engine) expireOne(ctx context.Context, request *models.HITLRequest) {
	if err := e.persistence.HITLRepository().Expire(ctx, request.ID); err != nil {
		e.logger.ErrorContext(ctx, "failed to expire approval request",
			"request_id", request.ID, "error", err)

		return
	}

	request.Status = models.HITLStatusExpired

	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, request.ExecutionID)
	if err != nil {
		e.logger.ErrorContext(ctx, "expired approval for unknown execution",
			"request_id", request.ID, "execution_id", request.ExecutionID, "error", err)

		return
	}

	e.notifyHITL(ctx, execution, request)

	e.logger.InfoContext(ctx, "approval request expired",
		"request_id", request.ID,
		"execution_id", execution.ID,
		"timeout_action", request.TimeoutAction)

	if request.TimeoutAction == models.HITLTimeoutContinueDefault {
		workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
		if err != nil {
			e.logger.ErrorContext(ctx, "cannot resume expired approval",
				"execution_id", execution.ID, "error", err)

			return
		}

		resumed := *request
		resumed.Response = request.DefaultValue

		if _, err := e.resumeRun(ctx, workflow, execution, &resumed); err != nil {
			e.logger.ErrorContext(ctx, "failed to resume after approval timeout",
				"execution_id", execution.ID, "error", err)
		}

		return
	}

	execution.RecordError(request.NodeID, ErrHITLTimeout)
	execution.Status = models.ExecutionStatusFailed
	now := time.Now().UTC()
	execution.CompletedAt = &now

	e.persistTerminal(ctx, execution)
	e.notifyStatus(ctx, execution)
}

// StartExpirySweeper schedules SweepExpired on the given cron expression
// and returns the running scheduler.
func (e *Engine) StartExpirySweeper(schedule string) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		e.SweepExpired(context.Background(), time.Now().UTC())
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweeper schedule %q: %w", schedule, err)
	}

	c.Start()

	return c, nil
}

func (e *Engine) notifyHITL(ctx context.Context, execution *models.WorkflowExecution, request *models.HITLRequest) {
	e.mu.Lock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, listener := range listeners {
		if hl, ok := listener.(HITLListener); ok {
			hl.HITLChanged(ctx, execution, request)
		}
	}
}

// HITLChanged publishes approval lifecycle events.
func (n *BusNotifier) HITLChanged(ctx context.Context, execution *models.WorkflowExecution, request *models.HITLRequest) {
	var event eventbus.Event

	switch request.Status {
	case models.HITLStatusPending:
		event = events.HITLRequested{
			BaseEvent: n.base(events.HITLRequestedEvent, execution),
			RequestID: request.ID,
			NodeID:    request.NodeID,
			Prompt:    request.Prompt,
			Channels:  request.Channels,
			ExpiresAt: request.ExpiresAt,
		}
	case models.HITLStatusAnswered:
		event = events.HITLAnswered{
			BaseEvent: n.base(events.HITLAnsweredEvent, execution),
			RequestID: request.ID,
			NodeID:    request.NodeID,
		}
	case models.HITLStatusExpired:
		event = events.HITLExpired{
			BaseEvent:     n.base(events.HITLExpiredEvent, execution),
			RequestID:     request.ID,
			NodeID:        request.NodeID,
			TimeoutAction: request.TimeoutAction,
		}
	default:
		return
	}

	_ = n.publisher.Publish(ctx, execution.ID, event)
}
