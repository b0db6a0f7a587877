package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/persistence"
)

// HITLRepository stores approval requests as hitl/{id}.json. Answer is
// serialized by a process-wide mutex so a request is consumed at most once.
type HITLRepository struct {
	root string
	mu   sync.Mutex
}

func (hr *HITLRepository) path(id string) string {
	return filepath.Join(hr.root, "hitl", id+".json")
}

func (hr *HITLRepository) Save(_ context.Context, request *models.HITLRequest) error {
	if err := writeJSON(hr.path(request.ID), request); err != nil {
		return persistence.NewStorageError("Save", "hitl", request.ID, err)
	}

	return nil
}

func (hr *HITLRepository) GetByID(_ context.Context, id string) (*models.HITLRequest, error) {
	var request models.HITLRequest

	if err := readJSON(hr.path(id), &request); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewStorageError("GetByID", "hitl", id, persistence.ErrHITLRequestNotFound)
		}

		return nil, persistence.NewStorageError("GetByID", "hitl", id, err)
	}

	return &request, nil
}

func (hr *HITLRepository) PendingByExecution(ctx context.Context, executionID string) (*models.HITLRequest, error) {
	requests, err := hr.all(ctx)
	if err != nil {
		return nil, err
	}

	for _, request := range requests {
		if request.ExecutionID == executionID && request.Status == models.HITLStatusPending {
			return request, nil
		}
	}

	return nil, persistence.NewStorageError("PendingByExecution", "hitl", executionID, persistence.ErrHITLRequestNotFound)
}

func (hr *HITLRepository) Answer(ctx context.Context, id string, response any, responseCtx map[string]any) (*models.HITLRequest, error) {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	request, err := hr.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch request.Status {
	case models.HITLStatusAnswered:
		return nil, persistence.NewStorageError("Answer", "hitl", id, persistence.ErrHITLAlreadyAnswered)
	case models.HITLStatusExpired:
		return nil, persistence.NewStorageError("Answer", "hitl", id, persistence.ErrHITLExpired)
	case models.HITLStatusPending:
	}

	now := time.Now().UTC()
	request.Status = models.HITLStatusAnswered
	request.Response = response
	request.ResponseCtx = responseCtx
	request.AnsweredAt = &now

	if err := hr.Save(ctx, request); err != nil {
		return nil, err
	}

	return request, nil
}

func (hr *HITLRepository) Expire(ctx context.Context, id string) error {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	request, err := hr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if request.Status != models.HITLStatusPending {
		return nil
	}

	request.Status = models.HITLStatusExpired

	return hr.Save(ctx, request)
}

func (hr *HITLRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.HITLRequest, error) {
	requests, err := hr.all(ctx)
	if err != nil {
		return nil, err
	}

	var expired []*models.HITLRequest

	for _, request := range requests {
		if request.Status == models.HITLStatusPending && request.Expired(now) {
			expired = append(expired, request)
		}
	}

	return expired, nil
}

func (hr *HITLRepository) all(_ context.Context) ([]*models.HITLRequest, error) {
	dir := filepath.Join(hr.root, "hitl")

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, persistence.NewStorageError("List", "hitl", "", err)
	}

	requests := make([]*models.HITLRequest, 0, len(files))

	for _, file := range files {
		var request models.HITLRequest
		if err := readJSON(filepath.Join(dir, file), &request); err != nil {
			continue
		}

		requests = append(requests, &request)
	}

	return requests, nil
}
