package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/persistence"
)

// WorkflowRepository stores workflows as workflows/{id}.json.
type WorkflowRepository struct {
	root string
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Join(wr.root, "workflows", id+".json")
}

func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	if err := writeJSON(wr.path(workflow.ID), workflow); err != nil {
		return persistence.NewStorageError("Save", "workflow", workflow.ID, err)
	}

	return nil
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	if err := readJSON(wr.path(id), &workflow); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewStorageError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewStorageError("GetByID", "workflow", id, err)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	dir := filepath.Join(wr.root, "workflows")

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, persistence.NewStorageError("GetAll", "workflow", "", err)
	}

	workflows := make([]*models.Workflow, 0, len(files))

	for _, file := range files {
		var workflow models.Workflow
		if err := readJSON(filepath.Join(dir, file), &workflow); err != nil {
			return nil, persistence.NewStorageError("GetAll", "workflow", file, fmt.Errorf("failed to read: %w", err))
		}

		workflows = append(workflows, &workflow)
	}

	return workflows, nil
}

func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	if err := os.Remove(wr.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return persistence.NewStorageError("Delete", "workflow", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewStorageError("Delete", "workflow", id, err)
	}

	return nil
}
