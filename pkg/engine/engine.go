// Package engine interprets workflow graphs: it walks nodes along their
// port connections, applies per-node failure policies, coordinates
// splitter fan-out and join barriers, pauses on human approval gates and
// records every run as a durable execution record.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/persistence"
	"github.com/dealflow/dealflow/pkg/registry"
	"github.com/dealflow/dealflow/pkg/tracer"
	"github.com/dealflow/dealflow/pkg/variables"
)

// Engine executes workflows. One Engine serves many concurrent runs; each
// run owns its own variable context and walk state.
type Engine struct {
	logger      *slog.Logger
	registry    *registry.Registry
	persistence persistence.Persistence
	validate    *validator.Validate
	globals     variables.GlobalStore
	tracer      trace.Tracer
	retention   int

	mu        sync.Mutex
	listeners []Listener
	cancelled map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer attaches a tracer; runs and nodes get spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithRetentionLimit overrides how many execution records are kept per
// (workflow, test-mode) pair.
func WithRetentionLimit(keep int) Option {
	return func(e *Engine) { e.retention = keep }
}

// WithGlobalStore overrides where global-scope variables live. By default
// they go through the persistence VariableRepository.
func WithGlobalStore(store variables.GlobalStore) Option {
	return func(e *Engine) { e.globals = store }
}

// NewEngine creates an engine.
func NewEngine(logger *slog.Logger, reg *registry.Registry, persist persistence.Persistence, opts ...Option) *Engine {
	e := &Engine{
		logger:      logger.With("module", "engine"),
		registry:    reg,
		persistence: persist,
		validate:    validator.New(),
		retention:   persistence.DefaultRetentionLimit,
		cancelled:   make(map[string]bool),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.globals == nil {
		e.globals = &repositoryGlobalStore{repo: persist.VariableRepository()}
	}

	return e
}

// Subscribe registers a listener notified synchronously after each node
// and at every status transition.
func (e *Engine) Subscribe(listener Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = append(e.listeners, listener)
}

// RunOptions parameterize one run.
type RunOptions struct {
	TriggeredBy string
	TestMode    bool
}

// Run executes the workflow synchronously and returns its execution
// record. Node failures never surface as a returned error; they end up in
// the record. A returned error means the workflow definition itself was
// unusable.
func (e *Engine) Run(ctx context.Context, workflow *models.Workflow, triggerData map[string]any, opts RunOptions) (*models.WorkflowExecution, error) {
	execution := &models.WorkflowExecution{
		ID:           uuid.New().String(),
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		TriggeredBy:  opts.TriggeredBy,
		TriggerData:  triggerData,
		Status:       models.ExecutionStatusRunning,
		IsTestMode:   opts.TestMode,
		StartedAt:    time.Now().UTC(),
	}

	if e.tracer != nil {
		var span trace.Span

		ctx, span = tracer.StartSpan(ctx, e.tracer, "engine.run",
			attribute.String(tracer.WorkflowIDKey, workflow.ID),
			attribute.String(tracer.ExecutionIDKey, execution.ID),
			attribute.Bool(tracer.TestModeKey, opts.TestMode),
		)
		defer span.End()
	}

	trigger, err := e.selectTrigger(workflow)
	if err != nil {
		return e.failConfiguration(ctx, execution, err)
	}

	if err := e.validate.Struct(workflow); err != nil {
		return e.failConfiguration(ctx, execution, NewConfigurationError("workflow validation failed", err))
	}

	vars, err := e.buildVariableContext(ctx, workflow)
	if err != nil {
		return e.failConfiguration(ctx, execution, err)
	}

	vars.SeedScope(variables.ScopeExecution, triggerData)

	e.trackRun(execution.ID)
	defer e.untrackRun(execution.ID)

	e.notifyStatus(ctx, execution)

	state := newWalkState(workflow, execution, vars, opts.TestMode)
	state.enqueue(activation{nodeID: trigger.ID})

	e.walk(ctx, state)

	return execution, nil
}

// Cancel requests cooperative cancellation. Traversal stops before the
// next node starts; the handler in flight finishes but its result is
// discarded.
func (e *Engine) Cancel(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, active := e.cancelled[executionID]; active {
		e.cancelled[executionID] = true
	}
}

func (e *Engine) trackRun(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelled[executionID] = false
}

func (e *Engine) untrackRun(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.cancelled, executionID)
}

func (e *Engine) cancelRequested(executionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cancelled[executionID]
}

func (e *Engine) selectTrigger(workflow *models.Workflow) (*models.WorkflowNode, error) {
	triggers := workflow.TriggerNodes()

	switch len(triggers) {
	case 0:
		return nil, ErrNoTriggerFound
	case 1:
		return triggers[0], nil
	default:
		return nil, ErrAmbiguousTrigger
	}
}

// buildVariableContext assembles the layered context: persisted globals,
// then workflow definition variables overlaid with persisted workflow
// variables. The execution scope is seeded by the caller.
func (e *Engine) buildVariableContext(ctx context.Context, workflow *models.Workflow) (*variables.Context, error) {
	vars := variables.NewContext().WithGlobalSink(e.globals)

	globals, err := e.globals.AllGlobals()
	if err != nil {
		return nil, NewConfigurationError("loading global variables", err)
	}

	vars.SeedScope(variables.ScopeGlobal, globals)
	vars.SeedScope(variables.ScopeWorkflow, workflow.Variables)

	persisted, err := e.persistence.VariableRepository().WorkflowVariables(ctx, workflow.ID)
	if err != nil {
		return nil, NewConfigurationError("loading workflow variables", err)
	}

	vars.SeedScope(variables.ScopeWorkflow, persisted)

	return vars, nil
}

// failConfiguration marks a run failed before any node executed.
func (e *Engine) failConfiguration(ctx context.Context, execution *models.WorkflowExecution, err error) (*models.WorkflowExecution, error) {
	execution.RecordError("", err)
	execution.Status = models.ExecutionStatusFailed
	now := time.Now().UTC()
	execution.CompletedAt = &now

	e.persistTerminal(ctx, execution)
	e.notifyStatus(ctx, execution)

	return execution, err
}

// persistWorkflowScope writes the run's workflow-scope values back to the
// variable repository. Workflow scope outlives a single run; the next run
// of the same workflow seeds from what is saved here.
func (e *Engine) persistWorkflowScope(ctx context.Context, state *walkState) {
	// Simulation runs leave no trace in shared workflow state.
	if state.testMode {
		return
	}

	repo := e.persistence.VariableRepository()

	for key, value := range state.vars.ScopeValues(variables.ScopeWorkflow) {
		if err := repo.SetWorkflowVariable(ctx, state.workflow.ID, key, value); err != nil {
			e.logger.ErrorContext(ctx, "failed to persist workflow variable",
				"workflow_id", state.workflow.ID, "key", key, "error", err)
		}
	}
}

// persistTerminal saves the record and applies retention for its
// (workflow, test-mode) pair.
func (e *Engine) persistTerminal(ctx context.Context, execution *models.WorkflowExecution) {
	repo := e.persistence.ExecutionRepository()

	if err := repo.Save(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist execution",
			"execution_id", execution.ID, "error", err)

		return
	}

	removed, err := repo.Prune(ctx, execution.WorkflowID, execution.IsTestMode, e.retention)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to prune execution history",
			"workflow_id", execution.WorkflowID, "error", err)

		return
	}

	if removed > 0 {
		e.logger.DebugContext(ctx, "pruned execution history",
			"workflow_id", execution.WorkflowID, "removed", removed)
	}
}

func (e *Engine) notifyStatus(ctx context.Context, execution *models.WorkflowExecution) {
	e.mu.Lock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, listener := range listeners {
		listener.StatusChanged(ctx, execution)
	}
}

func (e *Engine) notifyNode(ctx context.Context, execution *models.WorkflowExecution, entry *models.NodeExecution) {
	e.mu.Lock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, listener := range listeners {
		listener.NodeFinished(ctx, execution, entry)
	}
}

// repositoryGlobalStore adapts the persistence VariableRepository to the
// variables.GlobalStore write-through contract.
type repositoryGlobalStore struct {
	repo persistence.VariableRepository
}

func (s *repositoryGlobalStore) SetGlobal(key string, value any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.repo.SetGlobal(ctx, key, value)
}

func (s *repositoryGlobalStore) GetGlobal(key string) (any, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	globals, err := s.repo.Globals(ctx)
	if err != nil {
		return nil, false, err
	}

	value, ok := globals[key]

	return value, ok, nil
}

func (s *repositoryGlobalStore) AllGlobals() (map[string]any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	globals, err := s.repo.Globals(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading globals: %w", err)
	}

	return globals, nil
}
