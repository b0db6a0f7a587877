package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
	"github.com/dealflow/dealflow/pkg/tracer"
	"github.com/dealflow/dealflow/pkg/variables"
)

// activation is one pending traversal step: execute nodeID, delivering the
// source's result on targetPort.
type activation struct {
	nodeID     string
	sourceNode string
	sourcePort string
	targetPort string
	input      *models.NodeResult
}

// walkState is the per-run traversal state. The queue and bookkeeping maps
// are shared with parallel splitter branches, so mutations are guarded.
type walkState struct {
	workflow  *models.Workflow
	execution *models.WorkflowExecution
	vars      *variables.Context
	resolver  *variables.Resolver
	testMode  bool

	mu             sync.Mutex
	queue          []activation
	visited        map[string]bool
	outputs        map[string]map[string]models.NodeResult
	boards         map[string]*arrivalBoard
	pendingJoins   map[string]bool
	satisfiedGates map[string]bool
}

func newWalkState(workflow *models.Workflow, execution *models.WorkflowExecution, vars *variables.Context, testMode bool) *walkState {
	return &walkState{
		workflow:       workflow,
		execution:      execution,
		vars:           vars,
		resolver:       variables.NewResolver(vars),
		testMode:       testMode,
		visited:        make(map[string]bool),
		outputs:        make(map[string]map[string]models.NodeResult),
		boards:         make(map[string]*arrivalBoard),
		pendingJoins:   make(map[string]bool),
		satisfiedGates: make(map[string]bool),
	}
}

func (s *walkState) enqueue(act activation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, act)
}

func (s *walkState) pop() (activation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return activation{}, false
	}

	act := s.queue[0]
	s.queue = s.queue[1:]

	return act, true
}

func (s *walkState) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

func (s *walkState) isVisited(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.visited[nodeID]
}

func (s *walkState) markVisited(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visited[nodeID] = true
}

func (s *walkState) setOutputs(nodeID string, ports map[string]models.NodeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outputs[nodeID] = ports
}

func (s *walkState) appendEntry(entry *models.NodeExecution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.execution.NodeExecutions = append(s.execution.NodeExecutions, entry)
	s.execution.CurrentNodeID = entry.NodeID
}

func (s *walkState) recordError(nodeID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.execution.RecordError(nodeID, err)
}

// enqueueJoin activates a join at most once per barrier episode; further
// arrivals reach it through its board.
func (s *walkState) enqueueJoin(joinID, sourceNode string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingJoins[joinID] {
		return
	}

	s.pendingJoins[joinID] = true
	s.queue = append(s.queue, activation{nodeID: joinID, sourceNode: sourceNode})
}

func (s *walkState) clearPendingJoin(joinID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pendingJoins, joinID)
}

func (s *walkState) board(joinID string) *arrivalBoard {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[joinID]
	if !ok {
		b = newArrivalBoard()
		s.boards[joinID] = b
	}

	return b
}

// walk drains the activation queue, executing nodes and following the
// connections whose source ports emitted a result. Returns after the run
// reaches a terminal status or pauses on an approval gate.
func (e *Engine) walk(ctx context.Context, state *walkState) {
	deferrals := 0

	for {
		if e.cancelRequested(state.execution.ID) || ctx.Err() != nil {
			e.finish(ctx, state, models.ExecutionStatusCancelled, nil)

			return
		}

		act, ok := state.pop()
		if !ok {
			break
		}

		node := state.workflow.NodeByID(act.nodeID)
		if node == nil {
			e.logger.WarnContext(ctx, "connection targets unknown node",
				"execution_id", state.execution.ID, "node_id", act.nodeID)

			continue
		}

		if state.isVisited(node.ID) {
			continue
		}

		if !node.Enabled {
			e.recordSkipped(ctx, state, node)
			e.enqueueChildren(state, node.ID, nil)

			continue
		}

		if node.Kind == models.NodeKindJoin {
			// Stop deferring once every queued activation turned out to
			// be another waiting join, otherwise they defer to each other
			// forever.
			canDefer := deferrals <= state.queued()

			done, deferred := e.handleJoin(ctx, state, node, act, canDefer)
			if done {
				return
			}

			if deferred {
				deferrals++
			} else {
				deferrals = 0
			}

			continue
		}

		deferrals = 0

		if e.gateFires(state, node, models.HITLModeBefore) {
			e.pauseForHITL(ctx, state, node, models.HITLModeBefore)

			return
		}

		if node.Kind == models.NodeKindSplitter {
			if done := e.runFanOut(ctx, state, node); done {
				return
			}

			continue
		}

		ports, _, err := e.executeNode(ctx, state, node, act)
		if err != nil {
			if node.FailurePolicyOrDefault() == models.FailurePolicyStop {
				e.finish(ctx, state, models.ExecutionStatusFailed, nil)

				return
			}

			// continue policy: traverse every outgoing connection with
			// no input; downstream handlers must tolerate missing data.
			e.enqueueChildren(state, node.ID, nil)

			continue
		}

		if e.gateFires(state, node, models.HITLModeAfter) {
			e.pauseForHITL(ctx, state, node, models.HITLModeAfter)

			return
		}

		e.enqueueChildren(state, node.ID, ports)
	}

	final := map[string]any{}
	if prev, ok := state.vars.Get(variables.ScopeWorkflow, "previousOutput"); ok {
		if m, isMap := prev.(map[string]any); isMap {
			final = m
		}
	}

	e.finish(ctx, state, models.ExecutionStatusCompleted, final)
}

// executeNode creates the node from its factory, runs it and records the
// outcome in the execution log.
func (e *Engine) executeNode(ctx context.Context, state *walkState, node *models.WorkflowNode, act activation) (map[string]models.NodeResult, *models.NodeExecution, error) {
	if e.tracer != nil {
		var span trace.Span

		ctx, span = tracer.StartSpan(ctx, e.tracer, "engine.node",
			attribute.String(tracer.NodeIDKey, node.ID),
			attribute.String(tracer.NodeKindKey, node.Kind),
		)
		defer span.End()
	}

	inputs := map[string]models.NodeResult{}

	if act.input != nil {
		port := act.targetPort
		if port == "" {
			port = models.PortMain
		}

		inputs[port] = *act.input
	}

	return e.executeWithInputs(ctx, state, node, inputs)
}

// executeWithInputs runs a node against prepared inputs and records the
// outcome. Join and splitter coordination deliver gathered branch results
// through the same path.
func (e *Engine) executeWithInputs(ctx context.Context, state *walkState, node *models.WorkflowNode, inputs map[string]models.NodeResult) (map[string]models.NodeResult, *models.NodeExecution, error) {
	entry := &models.NodeExecution{
		NodeID:    node.ID,
		NodeKind:  node.Kind,
		Status:    models.NodeStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	if len(inputs) == 1 {
		for _, input := range inputs {
			entry.Input = input.Data
		}
	}

	state.appendEntry(entry)

	ports, err := e.invokeNode(ctx, state, node, inputs)

	now := time.Now().UTC()
	entry.CompletedAt = &now

	if err != nil {
		handlerErr := &NodeHandlerError{NodeID: node.ID, NodeKind: node.Kind, Err: err}
		entry.Status = models.NodeStatusFailed
		entry.Error = err.Error()
		state.recordError(node.ID, handlerErr)
		state.markVisited(node.ID)
		e.notifyNode(ctx, state.execution, entry)

		e.logger.WarnContext(ctx, "node failed",
			"execution_id", state.execution.ID,
			"node_id", node.ID,
			"node_kind", node.Kind,
			"on_failure", string(node.FailurePolicyOrDefault()),
			"error", err)

		return nil, entry, handlerErr
	}

	primary := primaryOutput(ports)
	entry.Status = models.NodeStatusSuccess
	entry.Output = primary
	entry.OutputPorts = portNames(ports)

	state.setOutputs(node.ID, ports)
	state.markVisited(node.ID)
	state.vars.SetNodeOutput(node.ID, primary)
	state.vars.Set(variables.ScopeWorkflow, "previousOutput", primary)

	e.notifyNode(ctx, state.execution, entry)

	return ports, entry, nil
}

// invokeNode builds the node instance and calls its handler.
func (e *Engine) invokeNode(ctx context.Context, state *walkState, node *models.WorkflowNode, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	instance, err := e.registry.CreateNode(ctx, node.Kind, node.ID, node.Config)
	if err != nil {
		return nil, err
	}

	ec := protocol.ExecutionContext{
		ExecutionID: state.execution.ID,
		WorkflowID:  state.workflow.ID,
		TriggeredBy: state.execution.TriggeredBy,
		TestMode:    state.testMode,
		Variables:   state.vars,
		Resolver:    state.resolver,
		Logger:      e.logger.With("node_id", node.ID, "node_kind", node.Kind),
	}

	return instance.Execute(ctx, ec, inputs)
}

func (e *Engine) recordSkipped(ctx context.Context, state *walkState, node *models.WorkflowNode) {
	now := time.Now().UTC()
	entry := &models.NodeExecution{
		NodeID:      node.ID,
		NodeKind:    node.Kind,
		Status:      models.NodeStatusSkipped,
		StartedAt:   now,
		CompletedAt: &now,
	}

	state.appendEntry(entry)
	state.markVisited(node.ID)
	e.notifyNode(ctx, state.execution, entry)
}

// enqueueChildren follows the node's outgoing connections into the main
// activation queue.
func (e *Engine) enqueueChildren(state *walkState, nodeID string, ports map[string]models.NodeResult) {
	e.routeChildren(state, nodeID, ports, state.enqueue)
}

// routeChildren follows the node's outgoing connections, handing each
// resulting activation to sink. With a non-nil port map only connections
// whose source port emitted a result are followed; a nil map (skipped or
// failed-with-continue nodes) follows all of them with no input.
// Connections into join nodes post to the join's arrival board and always
// activate the join on the main queue, regardless of sink.
func (e *Engine) routeChildren(state *walkState, nodeID string, ports map[string]models.NodeResult, sink func(activation)) {
	joined := map[string]bool{}

	for _, conn := range state.workflow.OutgoingConnections(nodeID) {
		_, sourcePort, ok := models.ParsePortID(conn.SourcePort)
		if !ok {
			continue
		}

		var input *models.NodeResult

		if ports != nil {
			result, emitted := ports[sourcePort]
			if !emitted {
				continue
			}

			input = &result
		}

		targetNode, targetPort, ok := models.ParsePortID(conn.TargetPort)
		if !ok {
			continue
		}

		target := state.workflow.NodeByID(targetNode)
		if target != nil && target.Kind == models.NodeKindJoin {
			arrival := models.NodeResult{
				NodeID:    nodeID,
				Status:    string(models.NodeStatusFailed),
				Timestamp: time.Now().UTC(),
				Error:     "no output",
			}
			if input != nil {
				arrival = *input
			}

			state.board(targetNode).post(nodeID, arrival)

			if !joined[targetNode] {
				joined[targetNode] = true

				state.enqueueJoin(targetNode, nodeID)
			}

			continue
		}

		sink(activation{
			nodeID:     targetNode,
			sourceNode: nodeID,
			sourcePort: sourcePort,
			targetPort: targetPort,
			input:      input,
		})
	}
}

// finish applies a terminal status: run-scoped variable layers are
// cleared, workflow-scope values written back, the record persisted with
// retention, listeners notified.
func (e *Engine) finish(ctx context.Context, state *walkState, status models.ExecutionStatus, finalOutput map[string]any) {
	execution := state.execution

	execution.Status = status
	execution.CurrentNodeID = ""
	execution.FinalOutput = finalOutput
	now := time.Now().UTC()
	execution.CompletedAt = &now

	state.vars.ClearScope(variables.ScopeExecution)
	state.vars.ClearScope(variables.ScopeBranch)

	e.persistWorkflowScope(ctx, state)
	e.persistTerminal(ctx, execution)
	e.notifyStatus(ctx, execution)

	e.logger.InfoContext(ctx, "execution finished",
		"execution_id", execution.ID,
		"workflow_id", execution.WorkflowID,
		"status", string(status),
		"nodes", len(execution.NodeExecutions))
}

// primaryOutput picks the node's canonical output: the main port when
// present, otherwise the single emitted port, otherwise a merge.
func primaryOutput(ports map[string]models.NodeResult) map[string]any {
	if result, ok := ports[models.PortMain]; ok {
		return result.Data
	}

	if len(ports) == 1 {
		for _, result := range ports {
			return result.Data
		}
	}

	merged := map[string]any{}

	for _, name := range portNames(ports) {
		for k, v := range ports[name].Data {
			merged[k] = v
		}
	}

	return merged
}

func portNames(ports map[string]models.NodeResult) []string {
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
