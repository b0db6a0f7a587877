// Package persistence provides the data storage abstraction layer for
// workflows, execution records, HITL requests and persisted variables.
package persistence

import (
	"context"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
)

// DefaultRetentionLimit is how many execution records are kept per
// (workflow, test-mode) pair.
const DefaultRetentionLimit = 25

// Persistence is the root storage interface. The engine's core logic only
// ever goes through the typed repositories below, never raw queries.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	HITLRepository() HITLRepository
	VariableRepository() VariableRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores workflow execution records.
type ExecutionRepository interface {
	// Save upserts an execution record.
	Save(ctx context.Context, execution *models.WorkflowExecution) error

	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)

	// ListByWorkflow returns records for one (workflow, test-mode) pair,
	// newest first by started_at.
	ListByWorkflow(ctx context.Context, workflowID string, testMode bool) ([]*models.WorkflowExecution, error)

	// Prune deletes all but the newest keep records sharing the same
	// (workflow, test-mode) pair and returns how many were removed.
	Prune(ctx context.Context, workflowID string, testMode bool, keep int) (int, error)
}

// HITLRepository stores human-in-the-loop approval requests.
type HITLRepository interface {
	Save(ctx context.Context, request *models.HITLRequest) error
	GetByID(ctx context.Context, id string) (*models.HITLRequest, error)

	// PendingByExecution returns the single pending request for an
	// execution, or ErrHITLRequestNotFound.
	PendingByExecution(ctx context.Context, executionID string) (*models.HITLRequest, error)

	// Answer transitions pending -> answered exactly once. A second call
	// fails with ErrHITLAlreadyAnswered.
	Answer(ctx context.Context, id string, response any, responseCtx map[string]any) (*models.HITLRequest, error)

	// Expire transitions pending -> expired.
	Expire(ctx context.Context, id string) error

	// ListExpired returns pending requests whose deadline passed before now.
	ListExpired(ctx context.Context, now time.Time) ([]*models.HITLRequest, error)
}

// VariableRepository stores variables that outlive a single run: the
// global scope shared by every workflow and the per-workflow scope.
type VariableRepository interface {
	SetGlobal(ctx context.Context, key string, value any) error
	Globals(ctx context.Context) (map[string]any, error)

	SetWorkflowVariable(ctx context.Context, workflowID, key string, value any) error
	WorkflowVariables(ctx context.Context, workflowID string) (map[string]any, error)
}
