package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/persistence"
)

// HITLRepository handles human-in-the-loop approval requests.
type HITLRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (hr *HITLRepository) Save(ctx context.Context, request *models.HITLRequest) error {
	optionsJSON, err := json.Marshal(request.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	channelsJSON, err := json.Marshal(request.Channels)
	if err != nil {
		return fmt.Errorf("failed to marshal channels: %w", err)
	}

	defaultValueJSON, err := json.Marshal(request.DefaultValue)
	if err != nil {
		return fmt.Errorf("failed to marshal default value: %w", err)
	}

	responseJSON, err := json.Marshal(request.Response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	responseCtxJSON, err := json.Marshal(request.ResponseCtx)
	if err != nil {
		return fmt.Errorf("failed to marshal response context: %w", err)
	}

	query := `
		INSERT INTO hitl_requests (
			id, execution_id, node_id, mode, step_index, prompt, options,
			channels, timeout_minutes, timeout_action, default_value, status,
			response, response_context, created_at, expires_at, answered_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			response = EXCLUDED.response,
			response_context = EXCLUDED.response_context,
			answered_at = EXCLUDED.answered_at
	`

	_, err = hr.db.ExecContext(ctx, query,
		request.ID,
		request.ExecutionID,
		request.NodeID,
		request.Mode,
		request.StepIndex,
		request.Prompt,
		optionsJSON,
		channelsJSON,
		request.TimeoutMinutes,
		request.TimeoutAction,
		defaultValueJSON,
		request.Status,
		responseJSON,
		responseCtxJSON,
		request.CreatedAt,
		request.ExpiresAt,
		request.AnsweredAt,
	)
	if err != nil {
		return persistence.NewStorageError("Save", "hitl", request.ID, err)
	}

	return nil
}

func (hr *HITLRepository) GetByID(ctx context.Context, id string) (*models.HITLRequest, error) {
	request, err := scanHITLRequest(hr.db.QueryRowContext(ctx, selectHITL+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStorageError("GetByID", "hitl", id, persistence.ErrHITLRequestNotFound)
		}

		return nil, persistence.NewStorageError("GetByID", "hitl", id, err)
	}

	return request, nil
}

func (hr *HITLRepository) PendingByExecution(ctx context.Context, executionID string) (*models.HITLRequest, error) {
	query := selectHITL + " WHERE execution_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1"

	request, err := scanHITLRequest(hr.db.QueryRowContext(ctx, query, executionID, models.HITLStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStorageError("PendingByExecution", "hitl", executionID, persistence.ErrHITLRequestNotFound)
		}

		return nil, persistence.NewStorageError("PendingByExecution", "hitl", executionID, err)
	}

	return request, nil
}

// Answer performs a compare-and-set from pending to answered. The WHERE
// clause on status makes the transition atomic; a concurrent or repeated
// answer sees zero rows updated and fails.
func (hr *HITLRepository) Answer(ctx context.Context, id string, response any, responseCtx map[string]any) (*models.HITLRequest, error) {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	responseCtxJSON, err := json.Marshal(responseCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response context: %w", err)
	}

	query := `
		UPDATE hitl_requests
		SET status = $1, response = $2, response_context = $3, answered_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := hr.db.ExecContext(ctx, query,
		models.HITLStatusAnswered, responseJSON, responseCtxJSON, time.Now().UTC(),
		id, models.HITLStatusPending)
	if err != nil {
		return nil, persistence.NewStorageError("Answer", "hitl", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, persistence.NewStorageError("Answer", "hitl", id, err)
	}

	if affected == 0 {
		existing, err := hr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if existing.Status == models.HITLStatusExpired {
			return nil, persistence.NewStorageError("Answer", "hitl", id, persistence.ErrHITLExpired)
		}

		return nil, persistence.NewStorageError("Answer", "hitl", id, persistence.ErrHITLAlreadyAnswered)
	}

	return hr.GetByID(ctx, id)
}

func (hr *HITLRepository) Expire(ctx context.Context, id string) error {
	_, err := hr.db.ExecContext(ctx,
		"UPDATE hitl_requests SET status = $1 WHERE id = $2 AND status = $3",
		models.HITLStatusExpired, id, models.HITLStatusPending)
	if err != nil {
		return persistence.NewStorageError("Expire", "hitl", id, err)
	}

	return nil
}

func (hr *HITLRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.HITLRequest, error) {
	query := selectHITL + " WHERE status = $1 AND expires_at IS NOT NULL AND expires_at < $2"

	rows, err := hr.db.QueryContext(ctx, query, models.HITLStatusPending, now)
	if err != nil {
		return nil, persistence.NewStorageError("ListExpired", "hitl", "", err)
	}
	defer rows.Close()

	var requests []*models.HITLRequest

	for rows.Next() {
		request, err := scanHITLRequest(rows)
		if err != nil {
			return nil, persistence.NewStorageError("ListExpired", "hitl", "", err)
		}

		requests = append(requests, request)
	}

	return requests, rows.Err()
}

const selectHITL = `
	SELECT id, execution_id, node_id, mode, step_index, prompt, options,
		   channels, timeout_minutes, timeout_action, default_value, status,
		   response, response_context, created_at, expires_at, answered_at
	FROM hitl_requests`

func scanHITLRequest(row rowScanner) (*models.HITLRequest, error) {
	var (
		request          models.HITLRequest
		optionsJSON      []byte
		channelsJSON     []byte
		defaultValueJSON []byte
		responseJSON     []byte
		responseCtxJSON  []byte
	)

	err := row.Scan(
		&request.ID,
		&request.ExecutionID,
		&request.NodeID,
		&request.Mode,
		&request.StepIndex,
		&request.Prompt,
		&optionsJSON,
		&channelsJSON,
		&request.TimeoutMinutes,
		&request.TimeoutAction,
		&defaultValueJSON,
		&request.Status,
		&responseJSON,
		&responseCtxJSON,
		&request.CreatedAt,
		&request.ExpiresAt,
		&request.AnsweredAt,
	)
	if err != nil {
		return nil, err
	}

	for raw, target := range map[*[]byte]any{
		&optionsJSON:      &request.Options,
		&channelsJSON:     &request.Channels,
		&defaultValueJSON: &request.DefaultValue,
		&responseJSON:     &request.Response,
		&responseCtxJSON:  &request.ResponseCtx,
	} {
		if len(*raw) > 0 {
			if err := json.Unmarshal(*raw, target); err != nil {
				return nil, fmt.Errorf("failed to unmarshal hitl field: %w", err)
			}
		}
	}

	return &request, nil
}
