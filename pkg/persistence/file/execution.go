package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/persistence"
)

// ExecutionRepository stores execution records as executions/{id}.json.
type ExecutionRepository struct {
	root string
}

func (er *ExecutionRepository) path(id string) string {
	return filepath.Join(er.root, "executions", id+".json")
}

func (er *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	if err := writeJSON(er.path(execution.ID), execution); err != nil {
		return persistence.NewStorageError("Save", "execution", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	if err := readJSON(er.path(id), &execution); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewStorageError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewStorageError("GetByID", "execution", id, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, testMode bool) ([]*models.WorkflowExecution, error) {
	executions, err := er.all(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*models.WorkflowExecution

	for _, execution := range executions {
		if execution.WorkflowID == workflowID && execution.IsTestMode == testMode {
			matched = append(matched, execution)
		}
	}

	// Newest first.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	return matched, nil
}

func (er *ExecutionRepository) Prune(ctx context.Context, workflowID string, testMode bool, keep int) (int, error) {
	executions, err := er.ListByWorkflow(ctx, workflowID, testMode)
	if err != nil {
		return 0, err
	}

	if keep < 0 || len(executions) <= keep {
		return 0, nil
	}

	pruned := 0

	for _, execution := range executions[keep:] {
		if err := os.Remove(er.path(execution.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return pruned, persistence.NewStorageError("Prune", "execution", execution.ID, err)
		}

		pruned++
	}

	return pruned, nil
}

func (er *ExecutionRepository) all(_ context.Context) ([]*models.WorkflowExecution, error) {
	dir := filepath.Join(er.root, "executions")

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, persistence.NewStorageError("List", "execution", "", err)
	}

	executions := make([]*models.WorkflowExecution, 0, len(files))

	for _, file := range files {
		var execution models.WorkflowExecution
		if err := readJSON(filepath.Join(dir, file), &execution); err != nil {
			continue
		}

		executions = append(executions, &execution)
	}

	return executions, nil
}
