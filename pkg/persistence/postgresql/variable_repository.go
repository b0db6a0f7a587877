package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealflow/dealflow/pkg/persistence"
)

// VariableRepository stores the global and per-workflow variable scopes.
// Each upsert touches exactly one row, so writes are atomic per key.
type VariableRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (vr *VariableRepository) SetGlobal(ctx context.Context, key string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal global variable %q: %w", key, err)
	}

	query := `
		INSERT INTO global_variables (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := vr.db.ExecContext(ctx, query, key, valueJSON, time.Now().UTC()); err != nil {
		return persistence.NewStorageError("SetGlobal", "variable", key, err)
	}

	return nil
}

func (vr *VariableRepository) Globals(ctx context.Context) (map[string]any, error) {
	rows, err := vr.db.QueryContext(ctx, "SELECT key, value FROM global_variables")
	if err != nil {
		return nil, persistence.NewStorageError("Globals", "variable", "", err)
	}
	defer rows.Close()

	return collectVariables(rows)
}

func (vr *VariableRepository) SetWorkflowVariable(ctx context.Context, workflowID, key string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow variable %q: %w", key, err)
	}

	query := `
		INSERT INTO workflow_variables (workflow_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workflow_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := vr.db.ExecContext(ctx, query, workflowID, key, valueJSON, time.Now().UTC()); err != nil {
		return persistence.NewStorageError("SetWorkflowVariable", "variable", key, err)
	}

	return nil
}

func (vr *VariableRepository) WorkflowVariables(ctx context.Context, workflowID string) (map[string]any, error) {
	rows, err := vr.db.QueryContext(ctx,
		"SELECT key, value FROM workflow_variables WHERE workflow_id = $1", workflowID)
	if err != nil {
		return nil, persistence.NewStorageError("WorkflowVariables", "variable", workflowID, err)
	}
	defer rows.Close()

	return collectVariables(rows)
}

func collectVariables(rows *sql.Rows) (map[string]any, error) {
	variables := make(map[string]any)

	for rows.Next() {
		var (
			key       string
			valueJSON []byte
		)

		if err := rows.Scan(&key, &valueJSON); err != nil {
			return nil, err
		}

		var value any
		if err := json.Unmarshal(valueJSON, &value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variable %q: %w", key, err)
		}

		variables[key] = value
	}

	return variables, rows.Err()
}
