package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/dealflow/dealflow/pkg/persistence"
)

// VariableRepository stores persisted variable scopes as JSON documents:
// variables/global.json and variables/workflow-{id}.json.
type VariableRepository struct {
	root string
	mu   sync.Mutex
}

func (vr *VariableRepository) globalPath() string {
	return filepath.Join(vr.root, "variables", "global.json")
}

func (vr *VariableRepository) workflowPath(workflowID string) string {
	return filepath.Join(vr.root, "variables", "workflow-"+workflowID+".json")
}

func (vr *VariableRepository) SetGlobal(_ context.Context, key string, value any) error {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	return vr.setIn(vr.globalPath(), key, value)
}

func (vr *VariableRepository) Globals(_ context.Context) (map[string]any, error) {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	return vr.readAll(vr.globalPath())
}

func (vr *VariableRepository) SetWorkflowVariable(_ context.Context, workflowID, key string, value any) error {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	return vr.setIn(vr.workflowPath(workflowID), key, value)
}

func (vr *VariableRepository) WorkflowVariables(_ context.Context, workflowID string) (map[string]any, error) {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	return vr.readAll(vr.workflowPath(workflowID))
}

func (vr *VariableRepository) setIn(path, key string, value any) error {
	values, err := vr.readAll(path)
	if err != nil {
		return err
	}

	values[key] = value

	if err := writeJSON(path, values); err != nil {
		return persistence.NewStorageError("Set", "variable", key, err)
	}

	return nil
}

func (vr *VariableRepository) readAll(path string) (map[string]any, error) {
	values := make(map[string]any)

	if err := readJSON(path, &values); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}

		return nil, persistence.NewStorageError("Read", "variable", path, err)
	}

	return values, nil
}
