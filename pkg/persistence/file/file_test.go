package file

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestWorkflowRepository_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).WorkflowRepository()

	workflow := &models.Workflow{
		ID:     "wf-1",
		Name:   "Lead routing",
		Status: models.WorkflowStatusPublished,
	}

	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Lead routing", loaded.Name)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, "wf-1"))

	_, err = repo.GetByID(ctx, "wf-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestExecutionRepository_SaveIsUpsert(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).ExecutionRepository()

	execution := &models.WorkflowExecution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, execution))

	execution.Status = models.ExecutionStatusCompleted
	require.NoError(t, repo.Save(ctx, execution))

	loaded, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
}

func TestExecutionRepository_ListByWorkflowSeparatesTestMode(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).ExecutionRepository()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		require.NoError(t, repo.Save(ctx, &models.WorkflowExecution{
			ID:         fmt.Sprintf("live-%d", i),
			WorkflowID: "wf-1",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	require.NoError(t, repo.Save(ctx, &models.WorkflowExecution{
		ID:         "test-0",
		WorkflowID: "wf-1",
		IsTestMode: true,
		StartedAt:  base,
	}))

	live, err := repo.ListByWorkflow(ctx, "wf-1", false)
	require.NoError(t, err)
	require.Len(t, live, 3)
	// Newest first.
	assert.Equal(t, "live-2", live[0].ID)

	test, err := repo.ListByWorkflow(ctx, "wf-1", true)
	require.NoError(t, err)
	require.Len(t, test, 1)
	assert.Equal(t, "test-0", test[0].ID)
}

func TestExecutionRepository_PruneKeepsNewest(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).ExecutionRepository()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 26 {
		require.NoError(t, repo.Save(ctx, &models.WorkflowExecution{
			ID:         fmt.Sprintf("exec-%02d", i),
			WorkflowID: "wf-1",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	pruned, err := repo.Prune(ctx, "wf-1", false, persistence.DefaultRetentionLimit)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	remaining, err := repo.ListByWorkflow(ctx, "wf-1", false)
	require.NoError(t, err)
	require.Len(t, remaining, persistence.DefaultRetentionLimit)

	// The oldest record is the one that went.
	for _, execution := range remaining {
		assert.NotEqual(t, "exec-00", execution.ID)
	}
}

func TestExecutionRepository_PruneUnderLimitIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).ExecutionRepository()

	require.NoError(t, repo.Save(ctx, &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1", StartedAt: time.Now()}))

	pruned, err := repo.Prune(ctx, "wf-1", false, persistence.DefaultRetentionLimit)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestHITLRepository_AnswerConsumesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).HITLRepository()

	require.NoError(t, repo.Save(ctx, &models.HITLRequest{
		ID:          "hitl-1",
		ExecutionID: "exec-1",
		Status:      models.HITLStatusPending,
		CreatedAt:   time.Now().UTC(),
	}))

	answered, err := repo.Answer(ctx, "hitl-1", "approve", map[string]any{"comment": "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.HITLStatusAnswered, answered.Status)
	assert.Equal(t, "approve", answered.Response)
	require.NotNil(t, answered.AnsweredAt)

	_, err = repo.Answer(ctx, "hitl-1", "approve", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrHITLAlreadyAnswered)
}

func TestHITLRepository_AnswerAfterExpiry(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).HITLRepository()

	require.NoError(t, repo.Save(ctx, &models.HITLRequest{
		ID:     "hitl-1",
		Status: models.HITLStatusPending,
	}))
	require.NoError(t, repo.Expire(ctx, "hitl-1"))

	_, err := repo.Answer(ctx, "hitl-1", "approve", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrHITLExpired)
}

func TestHITLRepository_PendingByExecution(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).HITLRepository()

	require.NoError(t, repo.Save(ctx, &models.HITLRequest{ID: "hitl-1", ExecutionID: "exec-1", Status: models.HITLStatusPending}))
	require.NoError(t, repo.Save(ctx, &models.HITLRequest{ID: "hitl-2", ExecutionID: "exec-2", Status: models.HITLStatusAnswered}))

	request, err := repo.PendingByExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "hitl-1", request.ID)

	_, err = repo.PendingByExecution(ctx, "exec-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrHITLRequestNotFound)
}

func TestHITLRepository_ListExpired(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).HITLRepository()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	require.NoError(t, repo.Save(ctx, &models.HITLRequest{ID: "overdue", Status: models.HITLStatusPending, ExpiresAt: &past}))
	require.NoError(t, repo.Save(ctx, &models.HITLRequest{ID: "fresh", Status: models.HITLStatusPending, ExpiresAt: &future}))
	require.NoError(t, repo.Save(ctx, &models.HITLRequest{ID: "no-deadline", Status: models.HITLStatusPending}))

	expired, err := repo.ListExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "overdue", expired[0].ID)
}

func TestVariableRepository_GlobalsAndWorkflowScopes(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).VariableRepository()

	require.NoError(t, repo.SetGlobal(ctx, "company", "Acme"))
	require.NoError(t, repo.SetWorkflowVariable(ctx, "wf-1", "threshold", 10000.0))
	require.NoError(t, repo.SetWorkflowVariable(ctx, "wf-2", "threshold", 500.0))

	globals, err := repo.Globals(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme", globals["company"])

	wf1, err := repo.WorkflowVariables(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 10000.0, wf1["threshold"])

	wf2, err := repo.WorkflowVariables(ctx, "wf-2")
	require.NoError(t, err)
	assert.Equal(t, 500.0, wf2["threshold"])
}
