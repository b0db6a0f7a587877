package engine

import (
	"context"
	"sync"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/nodes/join"
	"github.com/dealflow/dealflow/pkg/nodes/splitter"
	"github.com/dealflow/dealflow/pkg/variables"
)

// arrivalBoard collects branch results for one join node. Branches post as
// they finish; the join barrier waits on the updates channel.
type arrivalBoard struct {
	mu      sync.Mutex
	results map[string]models.NodeResult
	updates chan struct{}
}

func newArrivalBoard() *arrivalBoard {
	return &arrivalBoard{
		results: make(map[string]models.NodeResult),
		updates: make(chan struct{}, 1),
	}
}

func (b *arrivalBoard) post(nodeID string, result models.NodeResult) {
	b.mu.Lock()
	b.results[nodeID] = result
	b.mu.Unlock()

	select {
	case b.updates <- struct{}{}:
	default:
	}
}

func (b *arrivalBoard) snapshot() map[string]models.NodeResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]models.NodeResult, len(b.results))
	for k, v := range b.results {
		out[k] = v
	}

	return out
}

// runFanOut drives a multi-action-splitter: every outgoing connection is
// one branch, dispatched concurrently or in order per the configured
// execution mode. The splitter node itself runs last, summarizing the
// gathered branch results. Returns true when the run terminated.
func (e *Engine) runFanOut(ctx context.Context, state *walkState, node *models.WorkflowNode) bool {
	cfg, err := splitter.ParseConfig(node.Config)
	if err != nil {
		_, _, _ = e.executeWithInputs(ctx, state, node, nil) // schema validation reports the same fault
		e.finish(ctx, state, models.ExecutionStatusFailed, nil)

		return true
	}

	starts := e.branchStarts(state, node.ID)

	gathered := make(map[string]models.NodeResult, len(starts))

	if cfg.ExecutionMode == splitter.ModeSequential {
		for i, startID := range starts {
			state.vars.Set(variables.ScopeBranch, "branchIndex", i)
			state.vars.Set(variables.ScopeBranch, "branchNode", startID)

			gathered[startID] = e.runBranch(ctx, state, startID)

			state.vars.ClearScope(variables.ScopeBranch)
		}
	} else {
		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)

		for _, startID := range starts {
			wg.Add(1)

			go func(id string) {
				defer wg.Done()

				result := e.runBranch(ctx, state, id)

				mu.Lock()
				gathered[id] = result
				mu.Unlock()
			}(startID)
		}

		wg.Wait()
	}

	_, _, err = e.executeWithInputs(ctx, state, node, gathered)
	if err != nil {
		// The splitter summary itself never fails; a failure here means
		// the node config could not be built.
		e.finish(ctx, state, models.ExecutionStatusFailed, nil)

		return true
	}

	return false
}

// branchStarts returns the deduplicated targets of the splitter's outgoing
// connections. A connection straight into a join posts an empty success so
// the barrier still sees the branch.
func (e *Engine) branchStarts(state *walkState, splitterID string) []string {
	var starts []string

	seen := map[string]bool{}

	for _, conn := range state.workflow.OutgoingConnections(splitterID) {
		targetNode, _, ok := models.ParsePortID(conn.TargetPort)
		if !ok || seen[targetNode] {
			continue
		}

		seen[targetNode] = true

		target := state.workflow.NodeByID(targetNode)
		if target != nil && target.Kind == models.NodeKindJoin {
			state.board(targetNode).post(splitterID, models.NodeResult{
				NodeID:    splitterID,
				Data:      map[string]any{},
				Status:    string(models.NodeStatusSuccess),
				Timestamp: time.Now().UTC(),
			})
			state.enqueueJoin(targetNode, splitterID)

			continue
		}

		starts = append(starts, targetNode)
	}

	return starts
}

// runBranch walks one splitter branch to its end: a join boundary, a dead
// end, or a stop-policy failure. Branch failures never fail the run; they
// are reported through the branch result so the splitter summary and any
// join can account for them.
func (e *Engine) runBranch(ctx context.Context, state *walkState, startID string) models.NodeResult {
	local := []activation{{nodeID: startID}}

	last := models.NodeResult{
		NodeID:    startID,
		Data:      map[string]any{},
		Status:    string(models.NodeStatusSuccess),
		Timestamp: time.Now().UTC(),
	}

	for len(local) > 0 {
		if e.cancelRequested(state.execution.ID) || ctx.Err() != nil {
			return last
		}

		act := local[0]
		local = local[1:]

		node := state.workflow.NodeByID(act.nodeID)
		if node == nil || state.isVisited(node.ID) {
			continue
		}

		sink := func(a activation) { local = append(local, a) }

		if !node.Enabled {
			e.recordSkipped(ctx, state, node)
			e.routeChildren(state, node.ID, nil, sink)

			continue
		}

		ports, entry, err := e.executeNode(ctx, state, node, act)
		if err != nil {
			if node.FailurePolicyOrDefault() == models.FailurePolicyStop {
				return models.NodeResult{
					NodeID:    node.ID,
					Status:    string(models.NodeStatusFailed),
					Timestamp: time.Now().UTC(),
					Error:     entry.Error,
				}
			}

			e.routeChildren(state, node.ID, nil, sink)

			continue
		}

		last = models.NodeResult{
			NodeID:    node.ID,
			Data:      entry.Output,
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		}

		e.routeChildren(state, node.ID, ports, sink)
	}

	return last
}

// handleJoin applies the join barrier. When the queue still holds pending
// work the join is pushed back instead of blocking, so sequential diamond
// paths can feed it first; the barrier only blocks for branches that are
// genuinely in flight. Returns true when the run terminated.
func (e *Engine) handleJoin(ctx context.Context, state *walkState, node *models.WorkflowNode, act activation, canDefer bool) (done, deferred bool) {
	state.clearPendingJoin(node.ID)

	cfg, err := join.ParseConfig(node.Config)
	if err != nil {
		_, _, _ = e.executeWithInputs(ctx, state, node, nil)
		e.finish(ctx, state, models.ExecutionStatusFailed, nil)

		return true, false
	}

	expected := map[string]bool{}
	for _, conn := range state.workflow.IncomingConnections(node.ID) {
		expected[conn.SourceNode()] = true
	}

	board := state.board(node.ID)
	timer := time.NewTimer(cfg.Timeout)

	defer timer.Stop()

	for {
		arrived := board.snapshot()
		if joinSatisfied(cfg, arrived, expected) {
			break
		}

		if canDefer && state.queued() > 0 {
			state.enqueueJoin(node.ID, act.sourceNode)

			return false, true
		}

		select {
		case <-board.updates:
		case <-timer.C:
			arrived = board.snapshot()
			if cfg.ErrorHandling == join.ErrorFail || len(arrived) == 0 {
				state.recordError(node.ID, ErrJoinTimeout)
				e.recordJoinTimeout(ctx, state, node)
				e.finish(ctx, state, models.ExecutionStatusFailed, nil)

				return true, false
			}

			return e.completeJoin(ctx, state, node, arrived), false
		case <-ctx.Done():
			e.finish(ctx, state, models.ExecutionStatusCancelled, nil)

			return true, false
		}
	}

	return e.completeJoin(ctx, state, node, board.snapshot()), false
}

func (e *Engine) completeJoin(ctx context.Context, state *walkState, node *models.WorkflowNode, arrived map[string]models.NodeResult) bool {
	ports, _, err := e.executeWithInputs(ctx, state, node, arrived)
	if err != nil {
		if node.FailurePolicyOrDefault() == models.FailurePolicyStop {
			e.finish(ctx, state, models.ExecutionStatusFailed, nil)

			return true
		}

		e.enqueueChildren(state, node.ID, nil)

		return false
	}

	e.enqueueChildren(state, node.ID, ports)

	return false
}

func (e *Engine) recordJoinTimeout(ctx context.Context, state *walkState, node *models.WorkflowNode) {
	now := time.Now().UTC()
	entry := &models.NodeExecution{
		NodeID:      node.ID,
		NodeKind:    node.Kind,
		Status:      models.NodeStatusFailed,
		StartedAt:   now,
		CompletedAt: &now,
		Error:       ErrJoinTimeout.Error(),
	}

	state.appendEntry(entry)
	state.markVisited(node.ID)
	e.notifyNode(ctx, state.execution, entry)
}

func joinSatisfied(cfg join.Config, arrived map[string]models.NodeResult, expected map[string]bool) bool {
	if cfg.WaitMode == join.WaitAny {
		for _, result := range arrived {
			if result.Error == "" && result.Status != string(models.NodeStatusFailed) {
				return true
			}
		}

		return false
	}

	for nodeID := range expected {
		if _, ok := arrived[nodeID]; !ok {
			return false
		}
	}

	return len(expected) > 0
}
