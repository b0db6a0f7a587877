package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/persistence"
)

// ExecutionRepository handles workflow execution records.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (er *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	nodeExecutionsJSON, err := json.Marshal(execution.NodeExecutions)
	if err != nil {
		return fmt.Errorf("failed to marshal node executions: %w", err)
	}

	errorsJSON, err := json.Marshal(execution.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	triggerDataJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	finalOutputJSON, err := json.Marshal(execution.FinalOutput)
	if err != nil {
		return fmt.Errorf("failed to marshal final output: %w", err)
	}

	query := `
		INSERT INTO workflow_executions (
			id, workflow_id, workflow_name, triggered_by, trigger_data, status,
			current_node_id, node_executions, errors, final_output, is_test_mode,
			started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node_id = EXCLUDED.current_node_id,
			node_executions = EXCLUDED.node_executions,
			errors = EXCLUDED.errors,
			final_output = EXCLUDED.final_output,
			completed_at = EXCLUDED.completed_at
	`

	_, err = er.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.WorkflowName,
		execution.TriggeredBy,
		triggerDataJSON,
		execution.Status,
		execution.CurrentNodeID,
		nodeExecutionsJSON,
		errorsJSON,
		finalOutputJSON,
		execution.IsTestMode,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewStorageError("Save", "execution", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `
		SELECT id, workflow_id, workflow_name, triggered_by, trigger_data, status,
			   current_node_id, node_executions, errors, final_output, is_test_mode,
			   started_at, completed_at
		FROM workflow_executions
		WHERE id = $1
	`

	execution, err := scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStorageError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewStorageError("GetByID", "execution", id, err)
	}

	return execution, nil
}

func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, testMode bool) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT id, workflow_id, workflow_name, triggered_by, trigger_data, status,
			   current_node_id, node_executions, errors, final_output, is_test_mode,
			   started_at, completed_at
		FROM workflow_executions
		WHERE workflow_id = $1 AND is_test_mode = $2
		ORDER BY started_at DESC
	`

	rows, err := er.db.QueryContext(ctx, query, workflowID, testMode)
	if err != nil {
		return nil, persistence.NewStorageError("ListByWorkflow", "execution", workflowID, err)
	}
	defer rows.Close()

	var executions []*models.WorkflowExecution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewStorageError("ListByWorkflow", "execution", workflowID, err)
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

// Prune keeps the newest keep records per (workflow, test-mode) pair and
// deletes the rest. Runs after each terminal persist.
func (er *ExecutionRepository) Prune(ctx context.Context, workflowID string, testMode bool, keep int) (int, error) {
	query := `
		DELETE FROM workflow_executions
		WHERE workflow_id = $1 AND is_test_mode = $2 AND id NOT IN (
			SELECT id FROM workflow_executions
			WHERE workflow_id = $1 AND is_test_mode = $2
			ORDER BY started_at DESC
			LIMIT $3
		)
	`

	result, err := er.db.ExecContext(ctx, query, workflowID, testMode, keep)
	if err != nil {
		return 0, persistence.NewStorageError("Prune", "execution", workflowID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, persistence.NewStorageError("Prune", "execution", workflowID, err)
	}

	return int(affected), nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution          models.WorkflowExecution
		triggerDataJSON    []byte
		nodeExecutionsJSON []byte
		errorsJSON         []byte
		finalOutputJSON    []byte
		currentNodeID      sql.NullString
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.WorkflowName,
		&execution.TriggeredBy,
		&triggerDataJSON,
		&execution.Status,
		&currentNodeID,
		&nodeExecutionsJSON,
		&errorsJSON,
		&finalOutputJSON,
		&execution.IsTestMode,
		&execution.StartedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.CurrentNodeID = currentNodeID.String

	if len(triggerDataJSON) > 0 {
		if err := json.Unmarshal(triggerDataJSON, &execution.TriggerData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}

	if err := json.Unmarshal(nodeExecutionsJSON, &execution.NodeExecutions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node executions: %w", err)
	}

	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &execution.Errors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal errors: %w", err)
		}
	}

	if len(finalOutputJSON) > 0 {
		if err := json.Unmarshal(finalOutputJSON, &execution.FinalOutput); err != nil {
			return nil, fmt.Errorf("failed to unmarshal final output: %w", err)
		}
	}

	return &execution, nil
}
